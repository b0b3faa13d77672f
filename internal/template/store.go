package template

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docroi/internal/imaging"
	"github.com/ironsheep/docroi/internal/logging"
)

// DefaultFileName is the store file used when none is configured.
const DefaultFileName = "document_templates.json"

const backupTimeLayout = "20060102_150405"

// Ref identifies a template within a store.
type Ref struct {
	DocType string `json:"doc_type"`
	Name    string `json:"name"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for non-fatal problems such as failed backups.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = logging.OrDiscard(l) }
}

// WithClock overrides the time source used for timestamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithBackupDir writes backups to dir instead of next to the store file.
// The directory is created on first use.
func WithBackupDir(dir string) Option {
	return func(s *Store) { s.backupDir = dir }
}

// WithCanvas sets the canvas that region coordinates are validated against.
func WithCanvas(width, height int) Option {
	return func(s *Store) { s.width, s.height = width, height }
}

type document map[string]map[string]*Template

// Store persists templates in a single JSON file. See the package
// documentation for the file layout and concurrency rules.
type Store struct {
	mu     sync.Mutex
	path   string
	log    logrus.FieldLogger
	now    func() time.Time
	width  int
	height int

	// backups go here; empty means the store file's directory
	backupDir string

	docs document

	// state of the file as last read or written by this store
	onDisk bool
	digest [sha256.Size]byte
}

// Open loads the store at path. A missing file yields an empty store; an
// unreadable or malformed file is a *PersistenceError.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:   path,
		log:    logging.Discard(),
		now:    time.Now,
		width:  imaging.CanonicalWidth,
		height: imaging.CanonicalHeight,
		docs:   document{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Reload discards in-memory state and rereads the file.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.docs = document{}
		s.onDisk = false
		s.digest = [sha256.Size]byte{}
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "read", Path: s.path, Err: err}
	}

	docs := document{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &docs); err != nil {
			return &PersistenceError{Op: "decode", Path: s.path, Err: err}
		}
	}
	for docType, group := range docs {
		if group == nil {
			delete(docs, docType)
			continue
		}
		for name, t := range group {
			if t == nil {
				delete(group, name)
				continue
			}
			t.DocType = docType
			if t.Name == "" {
				t.Name = name
			}
		}
	}

	s.docs = docs
	s.onDisk = true
	s.digest = sha256.Sum256(data)
	s.log.WithFields(logrus.Fields{"path": s.path, "doc_types": len(docs)}).Debug("template store loaded")
	return nil
}

// DocTypes returns every document type, sorted.
func (s *Store) DocTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]string, 0, len(s.docs))
	for dt := range s.docs {
		types = append(types, dt)
	}
	sort.Strings(types)
	return types
}

// List returns the templates of docType, or of every document type when
// docType is empty, sorted by document type then name.
func (s *Store) List(docType string) []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := []Ref{}
	for dt, group := range s.docs {
		if docType != "" && dt != docType {
			continue
		}
		for name := range group {
			refs = append(refs, Ref{DocType: dt, Name: name})
		}
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].DocType != refs[j].DocType {
			return refs[i].DocType < refs[j].DocType
		}
		return refs[i].Name < refs[j].Name
	})
	return refs
}

// Get returns a copy of the named template.
func (s *Store) Get(docType, name string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.docs[docType][name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, docType, name)
	}
	return t.Clone(), nil
}

// CreateOrUpdate stores regions under docType/name and saves the file. An
// existing template keeps its creation time and threshold.
func (s *Store) CreateOrUpdate(docType, name string, regions Regions) (*Template, error) {
	return s.upsert(docType, name, regions, nil)
}

// CreateOrUpdateWithThreshold is CreateOrUpdate with an explicit confidence
// threshold.
func (s *Store) CreateOrUpdateWithThreshold(docType, name string, regions Regions, threshold float64) (*Template, error) {
	return s.upsert(docType, name, regions, &threshold)
}

func (s *Store) upsert(docType, name string, regions Regions, threshold *float64) (*Template, error) {
	docType = strings.TrimSpace(docType)
	name = strings.TrimSpace(name)
	if docType == "" {
		return nil, fmt.Errorf("%w: document type is empty", ErrInvalidTemplate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	t := &Template{
		DocType:             docType,
		Name:                name,
		Regions:             append(Regions(nil), regions...),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		CreatedAt:           now,
		ModifiedAt:          now,
	}
	if prev, ok := s.docs[docType][name]; ok {
		t.CreatedAt = prev.CreatedAt
		t.ConfidenceThreshold = prev.ConfidenceThreshold
	}
	if threshold != nil {
		t.ConfidenceThreshold = *threshold
	}
	for i := range t.Regions {
		if t.Regions[i].Color == nil {
			c := RandomColor()
			t.Regions[i].Color = &c
		}
	}
	if err := t.Validate(s.width, s.height); err != nil {
		return nil, err
	}

	next := s.docs.with(docType)
	next[docType][name] = t
	if err := s.save(next); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"doc_type": docType,
		"template": name,
		"regions":  len(t.Regions),
	}).Info("template saved")
	return t.Clone(), nil
}

// Delete removes a template and saves the file. A document type left without
// templates is removed too.
func (s *Store) Delete(docType, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[docType][name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, docType, name)
	}

	next := s.docs.with(docType)
	delete(next[docType], name)
	if len(next[docType]) == 0 {
		delete(next, docType)
	}
	if err := s.save(next); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"doc_type": docType, "template": name}).Info("template deleted")
	return nil
}

// Save writes the current state to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(s.docs)
}

// with returns a copy of d that shares templates but owns the outer map and
// the docType group, so the copy can be edited without touching d.
func (d document) with(docType string) document {
	out := make(document, len(d)+1)
	for dt, group := range d {
		out[dt] = group
	}
	group := make(map[string]*Template, len(d[docType])+1)
	for name, t := range d[docType] {
		group[name] = t
	}
	out[docType] = group
	return out
}

// save persists docs and, on success, makes it the current state. Callers
// hold s.mu.
func (s *Store) save(docs document) error {
	current, err := os.ReadFile(s.path)
	exists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &PersistenceError{Op: "read", Path: s.path, Err: err}
	}
	if exists != s.onDisk || (exists && sha256.Sum256(current) != s.digest) {
		return &PersistenceError{Op: "save", Path: s.path, Err: ErrConflict}
	}

	data, err := json.MarshalIndent(docs, "", "    ")
	if err != nil {
		return &PersistenceError{Op: "encode", Path: s.path, Err: err}
	}
	data = append(data, '\n')

	if exists {
		if backup, err := s.backup(current); err != nil {
			s.log.WithError(err).WithField("path", s.path).Warn("template store backup failed")
		} else {
			s.log.WithField("backup", backup).Debug("template store backed up")
		}
	}

	if err := writeAtomic(s.path, data); err != nil {
		return &PersistenceError{Op: "write", Path: s.path, Err: err}
	}

	s.docs = docs
	s.onDisk = true
	s.digest = sha256.Sum256(data)
	return nil
}

// backup writes data to <stem>_backup_YYYYMMDD_HHMMSS.json next to the store
// file. A name already taken in the same second gets a numeric suffix.
func (s *Store) backup(data []byte) (string, error) {
	dir := filepath.Dir(s.path)
	if s.backupDir != "" {
		dir = s.backupDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	ext := filepath.Ext(s.path)
	stem := strings.TrimSuffix(filepath.Base(s.path), ext)
	if ext == "" {
		ext = ".json"
	}
	base := fmt.Sprintf("%s_backup_%s", stem, s.now().Format(backupTimeLayout))

	name := filepath.Join(dir, base+ext)
	for i := 1; ; i++ {
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		return name, f.Close()
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
