package record

import (
	"errors"

	"ctdb/pkg/codec"
	"ctdb/pkg/ctdberr"
	"ctdb/pkg/storage"
)

// ErrInvalidFooter is returned when a candidate footer fails its
// validity check.
var ErrInvalidFooter = errors.New("record: invalid footer")

// Footer atomically publishes a tree root. It is written at an
// Align-byte-aligned offset strictly after the file tail at the time
// of commit.
type Footer struct {
	Cksum1    uint64
	TranCount uint64
	DelCount  uint64
	RootPos   int64
	Cksum2    uint64
}

func checksumFor(tranCount, delCount uint64, rootPos int64) uint64 {
	return ^(tranCount + delCount + uint64(rootPos))
}

// NewFooter builds a self-checksummed footer for the given commit
// counters and root offset.
func NewFooter(tranCount, delCount uint64, rootPos int64) Footer {
	cksum := checksumFor(tranCount, delCount, rootPos)
	return Footer{
		Cksum1:    cksum,
		TranCount: tranCount,
		DelCount:  delCount,
		RootPos:   rootPos,
		Cksum2:    cksum,
	}
}

// Valid reports whether f satisfies every condition of the
// footer-validity formula against a file of the given size:
//
//	cksum1 == cksum2, cksum1 != 0, root_pos < fileSize, and
//	cksum1 == ^(tran_count + del_count + root_pos).
func (f Footer) Valid(fileSize int64) bool {
	if f.Cksum1 != f.Cksum2 {
		return false
	}
	if f.Cksum1 == 0 {
		return false
	}
	if f.RootPos < 0 || f.RootPos >= fileSize {
		return false
	}
	return f.Cksum1 == checksumFor(f.TranCount, f.DelCount, f.RootPos)
}

// Encode serializes f to a FooterSize-byte slice.
func (f Footer) Encode() []byte {
	buf := make([]byte, FooterSize)
	w := codec.NewWriter(buf)
	_ = w.WriteU64(f.Cksum1)
	_ = w.WriteU64(f.TranCount)
	_ = w.WriteU64(f.DelCount)
	_ = w.WriteI64(f.RootPos)
	_ = w.WriteU64(f.Cksum2)
	return buf
}

// DecodeFooter parses a FooterSize-byte slice without validating it;
// callers check Valid separately so an invalid candidate can be
// reported distinctly from a short read.
func DecodeFooter(buf []byte) (Footer, error) {
	if len(buf) < FooterSize {
		return Footer{}, corrupt("decode-footer", errors.New("footer too short"))
	}
	r := codec.NewReader(buf)
	var f Footer
	var err error
	if f.Cksum1, err = r.ReadU64(); err != nil {
		return Footer{}, corrupt("decode-footer", err)
	}
	if f.TranCount, err = r.ReadU64(); err != nil {
		return Footer{}, corrupt("decode-footer", err)
	}
	if f.DelCount, err = r.ReadU64(); err != nil {
		return Footer{}, corrupt("decode-footer", err)
	}
	if f.RootPos, err = r.ReadI64(); err != nil {
		return Footer{}, corrupt("decode-footer", err)
	}
	if f.Cksum2, err = r.ReadU64(); err != nil {
		return Footer{}, corrupt("decode-footer", err)
	}
	return f, nil
}

// CommitFooter builds and durably appends a footer for the given
// counters and root offset at align_up(s.Size(), Align), zero-padding
// the gap between the current tail and that aligned offset, then fsyncs.
// Shared by ordinary transaction commit and vacuum's synthetic commit.
func CommitFooter(s storage.Storage, tranCount, delCount uint64, rootPos int64) error {
	footer := NewFooter(tranCount, delCount, rootPos)
	fileSize := s.Size()
	alignedPos := AlignUp(fileSize)
	pad := alignedPos - fileSize

	buf := make([]byte, pad+FooterSize)
	copy(buf[pad:], footer.Encode())
	if _, err := s.Append(buf); err != nil {
		return ctdberr.New(ctdberr.IoError, "commit-footer", err)
	}
	if err := s.Sync(); err != nil {
		return ctdberr.New(ctdberr.IoError, "commit-footer", err)
	}
	return nil
}

// AlignUp rounds n up to the next multiple of Align.
func AlignUp(n int64) int64 {
	if n%Align == 0 {
		return n
	}
	return n + (Align - n%Align)
}

// AlignDown rounds n down to the previous multiple of Align.
func AlignDown(n int64) int64 {
	return n - n%Align
}
