package nav

import "github.com/vanderheijden86/blockmap/pkg/render"

func (s *Session) instance() (render.Instance, error) {
	if s.bridge == nil {
		return nil, render.ErrNoInstance
	}
	inst := s.bridge.Instance()
	if inst == nil {
		return nil, render.ErrNoInstance
	}
	return inst, nil
}

// Zoom rescales the view by factor. The node tree is untouched.
func (s *Session) Zoom(factor float64) error {
	inst, err := s.instance()
	if err != nil {
		return err
	}
	return inst.Rescale(factor)
}

// Pan moves the view. The node tree is untouched.
func (s *Session) Pan(dx, dy float64) error {
	inst, err := s.instance()
	if err != nil {
		return err
	}
	return inst.Pan(dx, dy)
}

// Fit fits the content into the view.
func (s *Session) Fit() error {
	inst, err := s.instance()
	if err != nil {
		return err
	}
	return inst.Fit()
}

// Viewport returns the current transform, or the identity before the first
// render.
func (s *Session) Viewport() render.Transform {
	inst, err := s.instance()
	if err != nil {
		return render.Transform{K: 1}
	}
	return inst.Transform()
}
