// Package xa defines the contracts shared between XA resource managers and
// the transaction coordinator that recovers them.
package xa

import (
	"context"
	"encoding/hex"
	"fmt"
)

const (
	// MaxGtridSize is the largest global transaction id allowed by XA.
	MaxGtridSize = 64
	// MaxBqualSize is the largest branch qualifier allowed by XA.
	MaxBqualSize = 64
)

// Flags carries the XA flag bits passed to Start, End and Recover.
type Flags int32

const (
	NoFlags    Flags = 0x00000000
	Join       Flags = 0x00200000
	EndRScan   Flags = 0x00800000
	StartRScan Flags = 0x01000000
	Suspend    Flags = 0x02000000
	Success    Flags = 0x04000000
	Resume     Flags = 0x08000000
	Fail       Flags = 0x20000000
	OnePhase   Flags = 0x40000000
)

// Has reports whether all bits of other are set.
func (f Flags) Has(other Flags) bool {
	return other != 0 && f&other == other
}

// Vote is the outcome of the prepare phase.
type Vote int

const (
	// VoteOK means the branch is prepared and must be completed.
	VoteOK Vote = 0
	// VoteReadOnly means the branch made no changes and is already complete.
	VoteReadOnly Vote = 3
)

// Xid identifies a transaction branch.
type Xid struct {
	FormatID            int32
	GlobalTransactionID []byte
	BranchQualifier     []byte
}

// Validate checks the size limits of the identifier parts.
func (x Xid) Validate() error {
	if len(x.GlobalTransactionID) == 0 {
		return fmt.Errorf("xa: xid: global transaction id is empty")
	}
	if len(x.GlobalTransactionID) > MaxGtridSize {
		return fmt.Errorf("xa: xid: global transaction id exceeds %d bytes", MaxGtridSize)
	}
	if len(x.BranchQualifier) > MaxBqualSize {
		return fmt.Errorf("xa: xid: branch qualifier exceeds %d bytes", MaxBqualSize)
	}
	return nil
}

// String renders the xid for diagnostics.
func (x Xid) String() string {
	return fmt.Sprintf("%d:%s:%s", x.FormatID, hex.EncodeToString(x.GlobalTransactionID), hex.EncodeToString(x.BranchQualifier))
}

// Resource is a transactional resource driven by an external coordinator.
type Resource interface {
	Start(ctx context.Context, xid Xid, flags Flags) error
	End(ctx context.Context, xid Xid, flags Flags) error
	Prepare(ctx context.Context, xid Xid) (Vote, error)
	Commit(ctx context.Context, xid Xid, onePhase bool) error
	Rollback(ctx context.Context, xid Xid) error
	// Recover lists branches that are prepared but not completed.
	Recover(ctx context.Context, flags Flags) ([]Xid, error)
	Forget(ctx context.Context, xid Xid) error
}

// NamedResource is a Resource that carries the stable name of its resource manager.
type NamedResource interface {
	Resource
	Name() string
}

// NamedResourceFactory produces named resources on demand for the coordinator.
//
// The coordinator calls NamedResource whenever it needs to probe or complete
// in-doubt branches and hands every resource back through
// ReturnNamedResource once it is done with it.
type NamedResourceFactory interface {
	Name() string
	NamedResource(ctx context.Context) (NamedResource, error)
	ReturnNamedResource(res NamedResource)
}

// WrapperNamedResource attaches a name to an arbitrary Resource.
type WrapperNamedResource struct {
	Resource
	name string
}

// NewWrapperNamedResource wraps res under the given name.
func NewWrapperNamedResource(res Resource, name string) *WrapperNamedResource {
	return &WrapperNamedResource{Resource: res, name: name}
}

// Name returns the resource manager name.
func (w *WrapperNamedResource) Name() string {
	if w == nil {
		return ""
	}
	return w.name
}

// Unwrap returns the wrapped resource.
func (w *WrapperNamedResource) Unwrap() Resource {
	if w == nil {
		return nil
	}
	return w.Resource
}
