//go:build windows

package storage

import (
	"os"
	"reflect"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmapStorage implements Storage over a memory-mapped file on Windows.
type mmapStorage struct {
	mu        sync.Mutex
	file      *os.File
	mapHandle windows.Handle
	data      []byte
	size      int64
	readOnly  bool
}

func openMmap(path string, initialSize int64, readOnly bool) (Storage, error) {
	flag := os.O_RDWR | os.O_CREATE
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, err
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := stat.Size()
	if !readOnly && initialSize > size {
		if err := f.Truncate(initialSize); err != nil {
			f.Close()
			return nil, err
		}
		size = initialSize
	}

	m := &mmapStorage{file: f, size: size, readOnly: readOnly}
	if size > 0 {
		if err := m.mapRegion(size); err != nil {
			f.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *mmapStorage) mapRegion(size int64) error {
	prot := uint32(windows.PAGE_READWRITE)
	access := uint32(windows.FILE_MAP_READ | windows.FILE_MAP_WRITE)
	if m.readOnly {
		prot = windows.PAGE_READONLY
		access = windows.FILE_MAP_READ
	}

	mapHandle, err := windows.CreateFileMapping(
		windows.Handle(m.file.Fd()), nil, prot,
		uint32(size>>32), uint32(size&0xFFFFFFFF), nil)
	if err != nil {
		return err
	}

	addr, err := windows.MapViewOfFile(mapHandle, access, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapHandle)
		return err
	}

	var data []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&data))
	hdr.Data = addr
	hdr.Len = int(size)
	hdr.Cap = int(size)

	m.mapHandle = mapHandle
	m.data = data
	return nil
}

func (m *mmapStorage) unmapLocked() error {
	if len(m.data) == 0 {
		return nil
	}
	if err := windows.FlushViewOfFile(uintptr(unsafe.Pointer(&m.data[0])), uintptr(len(m.data))); err != nil {
		return err
	}
	if err := windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&m.data[0]))); err != nil {
		return err
	}
	m.data = nil
	if m.mapHandle != 0 {
		if err := windows.CloseHandle(m.mapHandle); err != nil {
			return err
		}
		m.mapHandle = 0
	}
	return nil
}

func (m *mmapStorage) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

func (m *mmapStorage) ReadAt(offset int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset < 0 || offset+int64(len(buf)) > m.size {
		return ErrOutOfRange
	}
	copy(buf, m.data[offset:offset+int64(len(buf))])
	return nil
}

func (m *mmapStorage) Append(buf []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return 0, os.ErrPermission
	}
	start := m.size
	if err := m.growLocked(start + int64(len(buf))); err != nil {
		return 0, err
	}
	copy(m.data[start:start+int64(len(buf))], buf)
	return start, nil
}

func (m *mmapStorage) WriteAt(offset int64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return os.ErrPermission
	}
	if offset < 0 || offset+int64(len(buf)) > m.size {
		return ErrOutOfRange
	}
	copy(m.data[offset:offset+int64(len(buf))], buf)
	return nil
}

func (m *mmapStorage) growLocked(newSize int64) error {
	if newSize <= m.size {
		return nil
	}
	if err := m.unmapLocked(); err != nil {
		return err
	}
	if err := m.file.Truncate(newSize); err != nil {
		return err
	}
	if err := m.mapRegion(newSize); err != nil {
		return err
	}
	m.size = newSize
	return nil
}

func (m *mmapStorage) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) == 0 {
		return nil
	}
	if err := windows.FlushViewOfFile(uintptr(unsafe.Pointer(&m.data[0])), uintptr(len(m.data))); err != nil {
		return err
	}
	return m.file.Sync()
}

func (m *mmapStorage) Truncate(newSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.unmapLocked(); err != nil {
		return err
	}
	if err := m.file.Truncate(newSize); err != nil {
		return err
	}
	m.size = newSize
	if newSize > 0 {
		if err := m.mapRegion(newSize); err != nil {
			return err
		}
	}
	return nil
}

func (m *mmapStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	err := m.unmapLocked()
	if m.file != nil {
		if cerr := m.file.Close(); err == nil {
			err = cerr
		}
		m.file = nil
	}
	return err
}
