package chartwriter

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/ginjaninja78/covid-scenes/internal/types"
	"github.com/ginjaninja78/covid-scenes/pkg/utils"
)

// FileRenderer writes every rendered View to a file in the output
// directory. It satisfies scene.Renderer.
type FileRenderer struct {
	writer     *Writer
	files      *utils.FileManager
	nameFormat string
	logger     *zap.Logger

	mu      sync.Mutex
	written []utils.RenderedFileInfo
}

// NewFileRenderer creates a FileRenderer. nameFormat accepts the
// placeholders of utils.GenerateOutputFileName plus {index}, {scene} and
// {state}.
func NewFileRenderer(writer *Writer, files *utils.FileManager, nameFormat string, logger *zap.Logger) *FileRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRenderer{
		writer:     writer,
		files:      files,
		nameFormat: nameFormat,
		logger:     logger.With(zap.String("component", "chartwriter")),
	}
}

// Render draws view into a new file.
func (r *FileRenderer) Render(view types.View) error {
	state := view.SelectedState
	if state == "" {
		state = "all"
	}

	name := utils.GenerateOutputFileName(r.nameFormat, map[string]string{
		"index": strconv.Itoa(view.Index),
		"scene": string(view.Kind),
		"state": state,
	}, r.writer.Extension())

	path, err := r.files.WriteFile(name, func(w io.Writer) error {
		return r.writer.Write(w, view)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	r.logger.Info("scene written",
		zap.Int("scene", view.Index),
		zap.String("kind", string(view.Kind)),
		zap.String("path", path),
	)

	r.mu.Lock()
	r.written = append(r.written, utils.RenderedFileInfo{
		Scene:      view.Index,
		Kind:       string(view.Kind),
		State:      view.SelectedState,
		OutputFile: path,
	})
	r.mu.Unlock()

	return nil
}

// Written returns the files written so far, in order.
func (r *FileRenderer) Written() []utils.RenderedFileInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]utils.RenderedFileInfo(nil), r.written...)
}
