package page

import (
	"vmkern/errs"
)

// InitFn is the user-supplied callback run once an Uninit page has
// been transmuted into its future type: the segment lazy loader for
// an executable mapping, or nil for pages (like a stack page's anon
// future) that need no further population once the frame is zeroed.
// aux is the same opaque record the Uninit carried.
type InitFn func(p *Page, aux interface{}) errs.Err_t

// Uninit is the initial state of every page created by the
// allocator: it names the backend the page will become and carries
// whatever that backend's constructor needs.
type Uninit struct {
	Future Kind
	Aux    interface{}
	InitFn InitFn
}

func (*Uninit) isPageState() {}

// NewUninitAnon builds an Uninit page whose future type is Anon.
func NewUninitAnon(fn InitFn, aux interface{}) *Uninit {
	return &Uninit{Future: KindAnon, Aux: aux, InitFn: fn}
}

// NewUninitFile builds an Uninit page whose future type is File,
// carrying the FileLazyAux the transmutation needs.
func NewUninitFile(fn InitFn, aux *FileLazyAux) *Uninit {
	return &Uninit{Future: KindFile, Aux: aux, InitFn: fn}
}

// swapInUninit runs the type-specific transmutation then the user
// callback. Both must succeed for the fault to resolve; either
// failure leaves the caller to destroy the page.
func (p *Page) swapInUninit(u *Uninit) errs.Err_t {
	switch u.Future {
	case KindAnon:
		p.state = &Anon{}
	case KindFile:
		aux, ok := u.Aux.(*FileLazyAux)
		if !ok {
			panic("page: uninit file future without FileLazyAux")
		}
		p.state = &File{
			File:      aux.File,
			Ofs:       aux.Ofs,
			ReadBytes: aux.ReadBytes,
			ZeroBytes: aux.ZeroBytes,
			RefCount:  aux.RefCount,
		}
	default:
		panic("page: unknown future kind")
	}

	if u.InitFn == nil {
		return 0
	}
	if err := u.InitFn(p, u.Aux); err != 0 {
		return err
	}
	return 0
}
