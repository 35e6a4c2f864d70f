package safe

import (
	"fmt"
	"image"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Mat owns a gocv.Mat and guarantees it is released exactly once. Each
// pipeline stage returns a fresh Mat; callers Close what they receive.
type Mat struct {
	mat     gocv.Mat
	isValid int32
	mu      sync.RWMutex
	tag     string
}

var liveMats int64

// LiveCount reports how many Mats are currently open. Tests use it to catch
// leaked intermediates.
func LiveCount() int64 {
	return atomic.LoadInt64(&liveMats)
}

func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return adopt(mat, ""), nil
}

// NewMatFromMat clones srcMat; the caller keeps ownership of srcMat.
func NewMatFromMat(srcMat gocv.Mat, tag string) (*Mat, error) {
	if srcMat.Empty() {
		return nil, fmt.Errorf("source Mat is empty")
	}

	clonedMat := srcMat.Clone()
	if clonedMat.Empty() {
		clonedMat.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}

	return adopt(clonedMat, tag), nil
}

// Wrap takes ownership of mat without copying. On error mat is closed.
func Wrap(mat gocv.Mat, tag string) (*Mat, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("cannot wrap empty Mat (%s)", tag)
	}
	return adopt(mat, tag), nil
}

// NewMatFromBytes builds an 8-bit Mat from row-major pixel data.
func NewMatFromBytes(rows, cols int, matType gocv.MatType, data []byte) (*Mat, error) {
	if err := ValidateDimensions(cols, rows, "NewMatFromBytes"); err != nil {
		return nil, err
	}

	mat, err := gocv.NewMatFromBytes(rows, cols, matType, data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from bytes: %w", err)
	}
	defer mat.Close()

	// NewMatFromBytes shares the Go slice; clone so the Mat owns its pixels.
	return NewMatFromMat(mat, "from_bytes")
}

func adopt(mat gocv.Mat, tag string) *Mat {
	safeMat := &Mat{
		mat:     mat,
		isValid: 1,
		tag:     tag,
	}

	atomic.AddInt64(&liveMats, 1)

	// Set finalizer for cleanup if Close() is not called
	runtime.SetFinalizer(safeMat, (*Mat).finalize)
	return safeMat
}

func (sm *Mat) IsValid() bool {
	return atomic.LoadInt32(&sm.isValid) == 1
}

func (sm *Mat) Empty() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return true
	}

	return sm.mat.Empty()
}

func (sm *Mat) Rows() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Rows()
}

func (sm *Mat) Cols() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Cols()
}

// Bounds returns the pixel rectangle covered by the Mat.
func (sm *Mat) Bounds() image.Rectangle {
	return image.Rect(0, 0, sm.Cols(), sm.Rows())
}

func (sm *Mat) Channels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0
	}

	return sm.mat.Channels()
}

func (sm *Mat) Type() gocv.MatType {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return gocv.MatTypeCV8UC1
	}

	return sm.mat.Type()
}

func (sm *Mat) Tag() string {
	return sm.tag
}

func (sm *Mat) Clone() (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}

	if sm.mat.Empty() {
		return nil, fmt.Errorf("cannot clone empty Mat")
	}

	return NewMatFromMat(sm.mat, sm.tag+"_clone")
}

// CropClone copies the pixels inside rect into a new Mat.
func (sm *Mat) CropClone(rect image.Rectangle) (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot crop invalid Mat")
	}

	bounds := image.Rect(0, 0, sm.mat.Cols(), sm.mat.Rows())
	if rect.Empty() || !rect.In(bounds) {
		return nil, fmt.Errorf("crop %v outside Mat bounds %v", rect, bounds)
	}

	region := sm.mat.Region(rect)
	defer region.Close()

	return NewMatFromMat(region, sm.tag+"_crop")
}

// Bytes returns a copy of the pixel data in row-major, channel-interleaved order.
func (sm *Mat) Bytes() ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() || sm.mat.Empty() {
		return nil, fmt.Errorf("Mat is invalid")
	}

	if !sm.mat.IsContinuous() {
		cont := sm.mat.Clone()
		defer cont.Close()
		return cont.ToBytes(), nil
	}

	return sm.mat.ToBytes(), nil
}

func (sm *Mat) GetUCharAt(row, col int) (uint8, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0, fmt.Errorf("Mat is invalid")
	}

	if row < 0 || row >= sm.mat.Rows() || col < 0 || col >= sm.mat.Cols() {
		return 0, fmt.Errorf("coordinates out of bounds: (%d,%d) for size %dx%d",
			col, row, sm.mat.Cols(), sm.mat.Rows())
	}

	return sm.mat.GetUCharAt(row, col), nil
}

func (sm *Mat) GetUCharAt3(row, col, channel int) (uint8, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return 0, fmt.Errorf("Mat is invalid")
	}

	if row < 0 || row >= sm.mat.Rows() || col < 0 || col >= sm.mat.Cols() {
		return 0, fmt.Errorf("coordinates out of bounds: (%d,%d) for size %dx%d",
			col, row, sm.mat.Cols(), sm.mat.Rows())
	}

	if channel < 0 || channel >= sm.mat.Channels() {
		return 0, fmt.Errorf("channel out of bounds: %d for %d channels", channel, sm.mat.Channels())
	}

	return sm.mat.GetUCharAt3(row, col, channel), nil
}

// GetMat exposes the underlying Mat for read access and for drawing into
// a Mat the caller owns. It must not be closed by the caller.
func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

func (sm *Mat) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		sm.mat.Close()
		atomic.AddInt64(&liveMats, -1)

		// Clear finalizer since we're cleaning up manually
		runtime.SetFinalizer(sm, nil)
	}
}

// finalize is called by Go's garbage collector as last resort cleanup
func (sm *Mat) finalize() {
	if atomic.LoadInt32(&sm.isValid) == 1 {
		sm.Close()
	}
}
