//go:build unix || darwin || linux || freebsd || openbsd || netbsd

package storage

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// mmapStorage implements Storage over a memory-mapped file on Unix-like
// systems.
type mmapStorage struct {
	mu       sync.Mutex
	file     *os.File
	data     []byte
	size     int64
	readOnly bool
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
	prot := unix.PROT_READ | unix.PROT_WRITE
	if m.readOnly {
		prot = unix.PROT_READ
	}
	data, err := unix.Mmap(int(m.file.Fd()), 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	m.data = data
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

// growLocked extends the file and remaps it to exactly newSize bytes.
// Caller must hold m.mu.
func (m *mmapStorage) growLocked(newSize int64) error {
	if newSize <= m.size {
		return nil
	}
	if len(m.data) > 0 {
		if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
			return err
		}
		if err := unix.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
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
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return err
	}
	return m.file.Sync()
}

func (m *mmapStorage) Truncate(newSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil {
			return err
		}
		m.data = nil
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
	var firstErr error
	if len(m.data) > 0 {
		if err := unix.Munmap(m.data); err != nil && firstErr == nil {
			firstErr = err
		}
		m.data = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.file = nil
	}
	return firstErr
}
