package cmdlist

// Framebuffer names a set of render targets drawn into together. Targets
// must share extents; the first color target (or the depth target when
// there are none) defines Width and Height.
type Framebuffer struct {
	// ColorTargets are the color attachments in slot order.
	ColorTargets []*Texture

	// DepthTarget is the optional depth-stencil attachment.
	DepthTarget *Texture

	// Width and Height are the attachment extents.
	Width  uint32
	Height uint32

	// Name is a debug label.
	Name string
}

// NewFramebuffer derives extents from the attachments and builds the
// framebuffer.
func NewFramebuffer(name string, depth *Texture, colors ...*Texture) *Framebuffer {
	fb := &Framebuffer{Name: name, ColorTargets: colors, DepthTarget: depth}
	if len(colors) > 0 {
		fb.Width, fb.Height = colors[0].Width, colors[0].Height
	} else if depth != nil {
		fb.Width, fb.Height = depth.Width, depth.Height
	}
	return fb
}

// Renderable reports whether every attachment can actually be rendered
// to. Draws against a non-renderable framebuffer are skipped rather than
// failed, so capture passes can run against staging targets.
func (fb *Framebuffer) Renderable() bool {
	for _, t := range fb.ColorTargets {
		if t == nil || !t.Renderable() {
			return false
		}
	}
	if fb.DepthTarget != nil && !fb.DepthTarget.Renderable() {
		return false
	}
	return len(fb.ColorTargets) > 0 || fb.DepthTarget != nil
}
