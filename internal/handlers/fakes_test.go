package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"integrations/internal/appers"
	"integrations/internal/application/entity"
	"integrations/internal/transport/docuseal"
	"integrations/internal/transport/evolution"
	"integrations/internal/transport/gdrive"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

var nopLogger = zap.NewNop().Sugar()

type postCall struct {
	url     string
	headers map[string]string
	body    map[string]any
}

type fakeSender struct {
	status int
	err    error
	calls  []postCall
}

func (f *fakeSender) Post(_ context.Context, url string, headers map[string]string, body any) (int, error) {
	m, _ := body.(map[string]any)
	if p, ok := body.(entity.Payload); ok {
		m = p
	}
	f.calls = append(f.calls, postCall{url: url, headers: headers, body: m})
	if f.err != nil {
		return f.status, f.err
	}
	if f.status == 0 {
		return 200, nil
	}
	return f.status, nil
}

type fakeSecrets map[string]string

func (f fakeSecrets) ReadSecret(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", appers.ErrSecretNotFound, name)
	}
	return v, nil
}

type fakeEvolution struct {
	externalID string
	err        error
	got        []evolution.SendTextRequest
}

func (f *fakeEvolution) SendText(_ context.Context, req evolution.SendTextRequest) (string, error) {
	f.got = append(f.got, req)
	return f.externalID, f.err
}

type fakeDocuseal struct {
	failFor map[string]bool
	nextID  int64
	got     []docuseal.CreateSubmissionRequest
	cfgs    []docuseal.Config
}

func (f *fakeDocuseal) CreateSubmission(_ context.Context, cfg docuseal.Config, in docuseal.CreateSubmissionRequest) (docuseal.SubmissionResponse, error) {
	f.got = append(f.got, in)
	f.cfgs = append(f.cfgs, cfg)
	if f.failFor[in.Submitters[0].Email] {
		return docuseal.SubmissionResponse{}, errors.New("docuseal HTTP 422")
	}
	f.nextID++
	return docuseal.SubmissionResponse{ID: f.nextID, Status: "pending"}, nil
}

type fakeDrive struct {
	failNames map[string]bool
	folders   []string
	copies    []string
	seq       int
}

func (d *fakeDrive) CreateFolder(_ context.Context, name, parentID string, _ bool) (gdrive.Folder, error) {
	if d.failNames[name] {
		return gdrive.Folder{}, errors.New("drive quota exceeded")
	}
	d.seq++
	id := fmt.Sprintf("f%d", d.seq)
	d.folders = append(d.folders, name+"@"+parentID)
	return gdrive.Folder{ID: id, URL: gdrive.FolderURL(id)}, nil
}

func (d *fakeDrive) CopyFile(_ context.Context, sourceID, name, parentID string) (gdrive.File, error) {
	if d.failNames[sourceID] {
		return gdrive.File{}, errors.New("file not found")
	}
	d.seq++
	id := fmt.Sprintf("c%d", d.seq)
	d.copies = append(d.copies, name+"@"+parentID)
	return gdrive.File{ID: id, WebViewLink: "https://drive/" + id}, nil
}

type fakeConnector struct {
	drive *fakeDrive
	err   error
	sa    string
}

func (c *fakeConnector) Connect(_ context.Context, sa string) (gdrive.Drive, error) {
	c.sa = sa
	if c.err != nil {
		return nil, c.err
	}
	return c.drive, nil
}

// fakeState in-memory drive_folders, job_files, docuseal_submissions, whatsapp_messages
type fakeState struct {
	mu          sync.Mutex
	jobs        map[string]*entity.JobRef
	folders     map[string]entity.DriveFolder
	driveURL    map[string]string
	files       map[string]entity.JobFile
	submissions []entity.SignatureSubmission
	active      map[string]bool
	messages    []entity.WhatsappMessage
	insertErr   error
}

func newFakeState() *fakeState {
	return &fakeState{
		jobs:     map[string]*entity.JobRef{},
		folders:  map[string]entity.DriveFolder{},
		driveURL: map[string]string{},
		files:    map[string]entity.JobFile{},
		active:   map[string]bool{},
	}
}

func (s *fakeState) GetJob(_ context.Context, _, jobID string) (*entity.JobRef, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, appers.ErrJobNotFound
	}
	return j, nil
}

func (s *fakeState) SetJobDriveURL(_ context.Context, _, jobID, url string) error {
	s.driveURL[jobID] = url
	return nil
}

func (s *fakeState) GetDriveFolder(_ context.Context, _, jobID, key string) (*entity.DriveFolder, error) {
	f, ok := s.folders[jobID+"/"+key]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

func (s *fakeState) UpsertDriveFolder(_ context.Context, _, jobID string, f entity.DriveFolder, _ *uuid.UUID) (uuid.UUID, error) {
	f.ID = uuid.Must(uuid.NewV4())
	s.folders[jobID+"/"+f.FolderKey] = f
	return f.ID, nil
}

func (s *fakeState) JobFileExists(_ context.Context, _, jobID, externalID string) (bool, error) {
	_, ok := s.files[jobID+"/"+externalID]
	return ok, nil
}

func (s *fakeState) InsertJobFile(_ context.Context, f entity.JobFile) error {
	s.files[f.JobID+"/"+f.ExternalID] = f
	return nil
}

func (s *fakeState) HasActiveSubmission(_ context.Context, _, jobID, email string, templateID int64) (bool, error) {
	return s.active[fmt.Sprintf("%s/%s/%d", jobID, email, templateID)], nil
}

func (s *fakeState) InsertSubmission(_ context.Context, sub entity.SignatureSubmission) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
	s.active[fmt.Sprintf("%s/%s/%d", sub.JobID, sub.PersonEmail, sub.DocusealTemplateID)] = true
	return uuid.Must(uuid.NewV4()), nil
}

func (s *fakeState) InsertWhatsappMessage(_ context.Context, m entity.WhatsappMessage) error {
	s.messages = append(s.messages, m)
	return s.insertErr
}

func newRequest(payload entity.Payload, settings entity.IntegrationsConfig) Request {
	return Request{
		TenantID: "t1",
		EventID:  uuid.Must(uuid.NewV4()),
		Payload:  payload,
		Settings: entity.TenantSettings{TenantID: "t1", Integrations: settings},
	}
}
