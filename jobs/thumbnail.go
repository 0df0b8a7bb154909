package jobs

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/meridianfs/core/job"
	"github.com/meridianfs/core/jobctx"
)

// ThumbnailTypeName is the registered type name for Thumbnail.
const ThumbnailTypeName job.TypeName = "thumbnail"

// ThumbnailState is Thumbnail's entire state: the source image and
// where its placeholder output gets written.
type ThumbnailState struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Thumbnail decodes an image's header to confirm it is readable and
// writes a placeholder describing its dimensions and format, standing
// in for real thumbnail rendering. Not resumable: a single image is
// cheap enough to redo from scratch rather than checkpoint.
type Thumbnail struct {
	state ThumbnailState
}

func (t *Thumbnail) TypeName() job.TypeName        { return ThumbnailTypeName }
func (t *Thumbnail) MarshalState() ([]byte, error) { return json.Marshal(t.state) }

func (t *Thumbnail) Run(ctx *jobctx.Context) (job.Output, error) {
	f, err := os.Open(t.state.Source)
	if err != nil {
		return job.Output{}, fmt.Errorf("thumbnail: open source: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return job.Output{}, fmt.Errorf("thumbnail: decode header: %w", err)
	}

	placeholder := fmt.Sprintf("placeholder thumbnail for %dx%d %s image\n", cfg.Width, cfg.Height, format)
	if err := os.WriteFile(t.state.Destination, []byte(placeholder), 0o644); err != nil {
		return job.Output{}, fmt.Errorf("thumbnail: write placeholder: %w", err)
	}

	ctx.Report(jobctx.Percent(1.0))

	return job.Output{Summary: fmt.Sprintf("thumbnail placeholder written for %s (%dx%d %s)", t.state.Source, cfg.Width, cfg.Height, format)}, nil
}

func thumbnailFromJSON(value []byte) (job.ErasedJob, error) {
	var s ThumbnailState
	if err := json.Unmarshal(value, &s); err != nil {
		return nil, err
	}
	return &Thumbnail{state: s}, nil
}

func thumbnailFromBytes(state []byte) (job.ErasedJob, error) {
	var s ThumbnailState
	if err := json.Unmarshal(state, &s); err != nil {
		return nil, err
	}
	return &Thumbnail{state: s}, nil
}
