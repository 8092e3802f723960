package buffer

import (
	"context"
	"testing"
)

type fakeGpuHandle struct {
	size     uint64
	released bool
}

func (h *fakeGpuHandle) Size() uint64 { return h.size }
func (h *fakeGpuHandle) Release()     { h.released = true }

type fakeUploader struct {
	uploaded []byte
	download []byte
}

func (u *fakeUploader) Upload(_ context.Context, data []byte) (GpuHandle, error) {
	u.uploaded = append([]byte(nil), data...)
	return &fakeGpuHandle{size: uint64(len(data))}, nil
}

func (u *fakeUploader) Download(_ context.Context, _ GpuHandle) ([]byte, error) {
	return u.download, nil
}

func TestCpuBufferWithWriteLockMutatesInPlace(t *testing.T) {
	t.Parallel()

	b := NewCpuBuffer(4)
	b.WithWriteLock(func(buf []byte) {
		for i := range buf {
			buf[i] = byte(i + 1)
		}
	})
	if got := b.AsSlice(); got[0] != 1 || got[3] != 4 {
		t.Fatalf("unexpected contents: %v", got)
	}
}

func TestEnsureCpuReturnsExistingWithoutPromotion(t *testing.T) {
	t.Parallel()

	b := FromCpu(WrapCpuBuffer([]byte{9, 9}))
	u := &fakeUploader{}
	got, err := EnsureCpu(context.Background(), b, u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != b.Cpu {
		t.Fatal("expected EnsureCpu to return the existing buffer unchanged")
	}
}

func TestEnsureCpuPromotesFromGpu(t *testing.T) {
	t.Parallel()

	u := &fakeUploader{download: []byte{1, 2, 3}}
	b := FromGpu(NewGpuBuffer(&fakeGpuHandle{size: 3}))

	got, err := EnsureCpu(context.Background(), b, u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got.AsSlice()) != string([]byte{1, 2, 3}) {
		t.Fatalf("got %v, want downloaded bytes", got.AsSlice())
	}
}

func TestEnsureGpuPromotesFromCpu(t *testing.T) {
	t.Parallel()

	u := &fakeUploader{}
	b := FromCpu(WrapCpuBuffer([]byte{4, 5, 6}))

	got, err := EnsureGpu(context.Background(), b, u)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Size() != 3 {
		t.Fatalf("got size %d, want 3", got.Size())
	}
	if string(u.uploaded) != string([]byte{4, 5, 6}) {
		t.Fatalf("uploader saw %v, want [4 5 6]", u.uploaded)
	}
}

func TestEnsureCpuErrorsOnEmptyBuffer(t *testing.T) {
	t.Parallel()

	_, err := EnsureCpu(context.Background(), Buffer{}, &fakeUploader{})
	if err == nil {
		t.Fatal("expected error for buffer with neither side populated")
	}
}
