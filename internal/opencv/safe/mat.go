package safe

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// MemoryTracker interface to avoid import cycles
type MemoryTracker interface {
	TrackAllocation(id uint64, size int64, tag string)
	TrackDeallocation(id uint64, tag string)
}

// Mat is an owned OpenCV matrix. Exactly one owner closes it; the
// pipeline never aliases a Mat between stages.
type Mat struct {
	mat        gocv.Mat
	isValid    int32
	mu         sync.RWMutex
	id         uint64
	memTracker MemoryTracker
	tag        string
}

var nextMatID uint64

func NewMat(rows, cols int, matType gocv.MatType) (*Mat, error) {
	return NewMatWithTracker(rows, cols, matType, nil, "")
}

func NewMatWithTracker(rows, cols int, matType gocv.MatType, memTracker MemoryTracker, tag string) (*Mat, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}

	mat := gocv.NewMatWithSize(rows, cols, matType)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("failed to create Mat with size %dx%d", cols, rows)
	}

	return adopt(mat, memTracker, tag), nil
}

func NewMatFromMatWithTracker(srcMat gocv.Mat, memTracker MemoryTracker, tag string) (*Mat, error) {
	if srcMat.Empty() {
		return nil, fmt.Errorf("source Mat is empty")
	}

	if srcMat.Rows() <= 0 || srcMat.Cols() <= 0 {
		return nil, fmt.Errorf("source Mat has invalid dimensions: %dx%d", srcMat.Cols(), srcMat.Rows())
	}

	clonedMat := srcMat.Clone()
	if clonedMat.Empty() {
		clonedMat.Close()
		return nil, fmt.Errorf("failed to clone Mat")
	}

	return adopt(clonedMat, memTracker, tag), nil
}

// Adopt takes ownership of mat without copying it. mat must not be
// closed by the caller afterwards.
func Adopt(mat gocv.Mat, memTracker MemoryTracker, tag string) (*Mat, error) {
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("cannot adopt empty Mat for %s", tag)
	}
	return adopt(mat, memTracker, tag), nil
}

func adopt(mat gocv.Mat, memTracker MemoryTracker, tag string) *Mat {
	safeMat := &Mat{
		mat:        mat,
		isValid:    1,
		id:         atomic.AddUint64(&nextMatID, 1),
		memTracker: memTracker,
		tag:        tag,
	}

	if memTracker != nil {
		size := int64(mat.Rows() * mat.Cols() * getMatTypeSize(mat.Type()))
		memTracker.TrackAllocation(safeMat.id, size, tag)
	}

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

// Tracker returns the tracker new Mats derived from this one should report to.
func (sm *Mat) Tracker() MemoryTracker {
	return sm.memTracker
}

// CloneAs deep-copies the Mat under a new tracking tag.
func (sm *Mat) CloneAs(tag string) (*Mat, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("cannot clone invalid Mat")
	}

	if sm.mat.Empty() {
		return nil, fmt.Errorf("cannot clone empty Mat")
	}

	return NewMatFromMatWithTracker(sm.mat, sm.memTracker, tag)
}

// Derive allocates a Mat of the same size and the given type that reports
// to the same tracker.
func (sm *Mat) Derive(matType gocv.MatType, tag string) (*Mat, error) {
	return NewMatWithTracker(sm.Rows(), sm.Cols(), matType, sm.memTracker, tag)
}

// Float32s exposes the pixel buffer of a continuous CV_32FC1 Mat. The
// slice aliases OpenCV memory and is valid until Close.
func (sm *Mat) Float32s() ([]float32, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("Mat is invalid")
	}
	if sm.mat.Type() != gocv.MatTypeCV32FC1 {
		return nil, fmt.Errorf("expected 32-bit float single channel Mat, got type %d", int(sm.mat.Type()))
	}

	return sm.mat.DataPtrFloat32()
}

// Uint8s exposes the pixel buffer of a continuous CV_8UC1 Mat.
func (sm *Mat) Uint8s() ([]uint8, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.IsValid() {
		return nil, fmt.Errorf("Mat is invalid")
	}
	if sm.mat.Type() != gocv.MatTypeCV8UC1 {
		return nil, fmt.Errorf("expected 8-bit single channel Mat, got type %d", int(sm.mat.Type()))
	}

	return sm.mat.DataPtrUint8()
}

func (sm *Mat) GetMat() gocv.Mat {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.mat
}

func (sm *Mat) ID() uint64 {
	return sm.id
}

func (sm *Mat) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if atomic.CompareAndSwapInt32(&sm.isValid, 1, 0) {
		if sm.memTracker != nil {
			sm.memTracker.TrackDeallocation(sm.id, sm.tag)
		}

		sm.mat.Close()

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

func getMatTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV16UC3:
		return 6
	case gocv.MatTypeCV32SC1:
		return 4
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	default:
		return 1
	}
}
