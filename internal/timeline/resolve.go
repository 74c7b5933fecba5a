package timeline

import (
	"fmt"
	"sort"

	"github.com/good-yellow-bee/clipforge/internal/models"
)

// Transform is a declarative placement. The presentation layer knows the
// rendered width, so alignment is a percentage shift rather than pixels.
type Transform struct {
	TranslateXPercent float64 `json:"translateXPercent"`
	X                 int     `json:"x"`
	Y                 int     `json:"y"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
}

// CSS renders the shift as a CSS transform value.
func (t Transform) CSS() string {
	if t.TranslateXPercent == 0 {
		return "none"
	}
	return fmt.Sprintf("translateX(%g%%)", t.TranslateXPercent)
}

// TextStyle carries the visual attributes of a text element.
type TextStyle struct {
	Align           models.Align `json:"align"`
	Font            string       `json:"font,omitempty"`
	FontSize        int          `json:"fontSize,omitempty"`
	Color           string       `json:"color,omitempty"`
	BackgroundColor string       `json:"backgroundColor,omitempty"`
}

// RenderInstruction describes when, where and in which stacking position an
// element appears. ZOrder 0 is the bottom of the stack.
type RenderInstruction struct {
	ElementID      string             `json:"elementId"`
	Kind           models.ElementKind `json:"type"`
	FromFrame      int                `json:"fromFrame"`
	DurationFrames int                `json:"durationFrames"`
	ZOrder         int                `json:"zOrder"`
	Opacity        float64            `json:"opacity"`
	Transform      Transform          `json:"transform"`

	Lines []string   `json:"lines,omitempty"`
	Style *TextStyle `json:"style,omitempty"`

	Source          string  `json:"source,omitempty"`
	SourceFromFrame int     `json:"sourceFromFrame,omitempty"`
	Volume          float64 `json:"volume,omitempty"`
}

// Range returns the instruction's frame range.
func (ri RenderInstruction) Range() FrameRange {
	return FrameRange{FromFrame: ri.FromFrame, DurationFrames: ri.DurationFrames}
}

// Resolver projects timeline elements onto render instructions.
type Resolver struct {
	Mapper Mapper
}

// NewResolver creates a resolver with the given safe-frame padding.
func NewResolver(safeFrames int) *Resolver {
	return &Resolver{Mapper: Mapper{SafeFrames: safeFrames}}
}

// Resolve orders elements by zIndex (ties by insertion sequence) and maps
// each one to a render instruction. Elements of unknown kind are skipped.
func (r *Resolver) Resolve(elements []models.TimelineElement, fps float64) []RenderInstruction {
	ordered := make([]*models.TimelineElement, 0, len(elements))
	for i := range elements {
		ordered = append(ordered, &elements[i])
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.ZIndex != b.ZIndex {
			return a.ZIndex < b.ZIndex
		}
		return a.Seq < b.Seq
	})

	out := make([]RenderInstruction, 0, len(ordered))
	for _, el := range ordered {
		ri, ok := r.ResolveElement(el, fps)
		if !ok {
			continue
		}
		ri.ZOrder = len(out)
		out = append(out, ri)
	}
	return out
}

// ResolveElement maps a single element. ZOrder is left at 0; Resolve assigns it.
func (r *Resolver) ResolveElement(el *models.TimelineElement, fps float64) (RenderInstruction, bool) {
	fr := r.Mapper.Map(Window{From: el.PositionStart, To: el.PositionEnd}, fps)
	ri := RenderInstruction{
		ElementID:      el.ID,
		Kind:           el.Kind,
		FromFrame:      fr.FromFrame,
		DurationFrames: fr.DurationFrames,
		Opacity:        clampOpacity(el.Opacity),
	}

	switch el.Kind {
	case models.KindText:
		if el.Text == nil {
			return RenderInstruction{}, false
		}
		t := el.Text
		ri.Transform = TransformFor(t.Align)
		ri.Transform.X, ri.Transform.Y = t.X, t.Y
		ri.Lines = SanitizedLines(t.Content)
		ri.Style = &TextStyle{
			Align:           models.ParseAlign(string(t.Align)),
			Font:            t.Font,
			FontSize:        t.FontSize,
			Color:           t.Color,
			BackgroundColor: t.BackgroundColor,
		}
	case models.KindMedia:
		if el.Media == nil {
			return RenderInstruction{}, false
		}
		m := el.Media
		ri.Transform = Transform{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height}
		ri.Source = m.Source
		ri.SourceFromFrame = toFrame(m.StartOffset, fps)
		ri.Volume = float64(clampPercent(m.Volume)) / 100
	default:
		return RenderInstruction{}, false
	}
	return ri, true
}

// TransformFor returns the horizontal shift for an alignment.
func TransformFor(align models.Align) Transform {
	switch align {
	case models.AlignCenter:
		return Transform{TranslateXPercent: -50}
	case models.AlignRight:
		return Transform{TranslateXPercent: -100}
	default:
		return Transform{}
	}
}

// ActiveAt returns the instructions visible at frame, bottom to top.
func ActiveAt(instructions []RenderInstruction, frame int) []RenderInstruction {
	var out []RenderInstruction
	for _, ri := range instructions {
		if ri.Range().Contains(frame) {
			out = append(out, ri)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZOrder < out[j].ZOrder })
	return out
}

// TotalFrames is the composition length: the last end frame, at least 1.
func TotalFrames(instructions []RenderInstruction) int {
	total := 1
	for _, ri := range instructions {
		if end := ri.Range().EndFrame(); end > total {
			total = end
		}
	}
	return total
}

func clampOpacity(o int) float64 {
	return float64(clampPercent(o)) / 100
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
