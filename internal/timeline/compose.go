package timeline

import "github.com/good-yellow-bee/clipforge/internal/models"

// Composition is a whole project resolved for playback or export.
type Composition struct {
	ProjectID    string              `json:"projectId"`
	FPS          float64             `json:"fps"`
	Resolution   models.Resolution   `json:"resolution"`
	TotalFrames  int                 `json:"totalFrames"`
	Instructions []RenderInstruction `json:"instructions"`
}

// Compose resolves every element of p at the project's frame rate.
func (r *Resolver) Compose(p *models.Project) Composition {
	instrs := r.Resolve(p.Elements, p.FPS)
	return Composition{
		ProjectID:    p.ID,
		FPS:          p.FPS,
		Resolution:   p.Resolution,
		TotalFrames:  TotalFrames(instrs),
		Instructions: instrs,
	}
}

// Frame returns the instructions visible at frame.
func (c Composition) Frame(frame int) []RenderInstruction {
	return ActiveAt(c.Instructions, frame)
}
