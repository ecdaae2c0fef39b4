package devserver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ObjectStore keeps uploaded objects as flat files under a root directory
type ObjectStore struct {
	root string
}

func NewObjectStore(root string) (*ObjectStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &ObjectStore{root: root}, nil
}

// Path returns the file backing name
func (s *ObjectStore) Path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

// Put writes data as name; an existing object is never replaced
func (s *ObjectStore) Put(name string, data []byte) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return ErrObjectExists
		}
		return fmt.Errorf("failed to create object: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write object: %w", err)
	}
	return f.Close()
}

func (s *ObjectStore) Get(name string) ([]byte, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *ObjectStore) Delete(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
