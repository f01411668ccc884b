package registrationservice_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"impulsame/internal/domain"
	apperror "impulsame/internal/errors"
	"impulsame/internal/pkg/logger"
	"impulsame/internal/service/registrationservice"
)

// MockRegistrationStore é uma implementação mock da interface domain.RegistrationStore
type MockRegistrationStore struct {
	mock.Mock
}

func (m *MockRegistrationStore) Create(ctx context.Context, record domain.UserRecord) (domain.UserRecord, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(domain.UserRecord), args.Error(1)
}

func (m *MockRegistrationStore) FindByEmailOrCI(ctx context.Context, email, ci string) (domain.UserRecord, error) {
	args := m.Called(ctx, email, ci)
	return args.Get(0).(domain.UserRecord), args.Error(1)
}

func (m *MockRegistrationStore) FindByFolderName(ctx context.Context, folderName string) (domain.UserRecord, error) {
	args := m.Called(ctx, folderName)
	return args.Get(0).(domain.UserRecord), args.Error(1)
}

func (m *MockRegistrationStore) UpdateStatus(ctx context.Context, userID string, status domain.RegistrationStatus) error {
	args := m.Called(ctx, userID, status)
	return args.Error(0)
}

// MockBlobClient é uma implementação mock da interface blob.Client
type MockBlobClient struct {
	mock.Mock
}

func (m *MockBlobClient) Write(ctx context.Context, key string, content []byte, contentType string) error {
	args := m.Called(ctx, key, content, contentType)
	return args.Error(0)
}

// newTestService monta o serviço com mocks e relógio fixo (2025-08-18).
func newTestService(store *MockRegistrationStore, blobClient *MockBlobClient) *registrationservice.Service {
	svc := registrationservice.NewService(store, blobClient, logger.NewLogger("debug"))
	svc.Now = func() time.Time {
		return time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

// requiredFiles monta os documentos mínimos válidos da fase dois.
func requiredFiles() []domain.AttachedFile {
	return []domain.AttachedFile{
		{LogicalName: "id_file", Content: []byte("cedula-bytes"), ContentType: "application/pdf"},
		{LogicalName: "rif_file", Content: []byte("rif-bytes"), ContentType: "application/pdf"},
	}
}

// --- Fase um ---

// TestRegisterUser_Success testa o caminho feliz da fase um, incluindo o
// folder_name determinístico do cenário de referência.
func TestRegisterUser_Success(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	mockStore.On("Create", mock.Anything, mock.MatchedBy(func(rec domain.UserRecord) bool {
		return rec.FolderName == "18082025-V-1-Jane_Doe" &&
			rec.Status == domain.StatusPendingFiles &&
			rec.ID != ""
	})).Return(domain.UserRecord{
		ID:         "uuid-1",
		FolderName: "18082025-V-1-Jane_Doe",
		Status:     domain.StatusPendingFiles,
	}, nil)

	record, err := svc.RegisterUser(context.Background(), validSubmission())

	assert.NoError(t, err)
	assert.Equal(t, "uuid-1", record.ID)
	assert.Equal(t, "18082025-V-1-Jane_Doe", record.FolderName)
	assert.Equal(t, domain.StatusPendingFiles, record.Status)
	mockStore.AssertExpectations(t)
}

// TestRegisterUser_ValidationFailure_NoStoreAccess garante que uma submissão
// inválida nunca chega ao datastore.
func TestRegisterUser_ValidationFailure_NoStoreAccess(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	sub := validSubmission()
	sub.Set("email", "not-an-email")

	_, err := svc.RegisterUser(context.Background(), sub)

	assert.Error(t, err)
	var validationErr *apperror.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.NotEmpty(t, validationErr.Fields)
	assert.Equal(t, "email", validationErr.Fields[0].Field)

	mockStore.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "FindByEmailOrCI", mock.Anything, mock.Anything, mock.Anything)
}

// TestRegisterUser_IdempotentResubmission testa o reenvio da mesma identidade
// (email e ci iguais, registro ainda PENDING_FILES): o registro existente é
// devolvido, sem criação de duplicata.
func TestRegisterUser_IdempotentResubmission(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	existing := domain.UserRecord{
		ID: "uuid-existente",
		Profile: domain.RegistrationProfile{
			Email: "a@b.com",
			CI:    "V-1",
		},
		FolderName: "18082025-V-1-Jane_Doe",
		Status:     domain.StatusPendingFiles,
	}

	mockStore.On("Create", mock.Anything, mock.Anything).
		Return(domain.UserRecord{}, fmt.Errorf("create user: %w", domain.ErrUniqueViolation))
	mockStore.On("FindByEmailOrCI", mock.Anything, "a@b.com", "V-1").Return(existing, nil)

	record, err := svc.RegisterUser(context.Background(), validSubmission())

	assert.NoError(t, err)
	assert.Equal(t, "uuid-existente", record.ID)
	assert.Equal(t, "18082025-V-1-Jane_Doe", record.FolderName)
	mockStore.AssertExpectations(t)
}

// TestRegisterUser_DuplicateDifferentUser testa a duplicata verdadeira:
// o email colide com um registro cujo ci é de outra pessoa.
func TestRegisterUser_DuplicateDifferentUser(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	existing := domain.UserRecord{
		ID: "uuid-outro",
		Profile: domain.RegistrationProfile{
			Email: "a@b.com",
			CI:    "V-99999", // ci diferente: não é a mesma identidade
		},
		Status: domain.StatusPendingFiles,
	}

	mockStore.On("Create", mock.Anything, mock.Anything).
		Return(domain.UserRecord{}, fmt.Errorf("create user: %w", domain.ErrUniqueViolation))
	mockStore.On("FindByEmailOrCI", mock.Anything, "a@b.com", "V-1").Return(existing, nil)

	_, err := svc.RegisterUser(context.Background(), validSubmission())

	assert.Error(t, err)
	var dupErr *apperror.DuplicateUserError
	assert.True(t, errors.As(err, &dupErr))
	// Nenhuma mutação no registro existente.
	mockStore.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// TestRegisterUser_DuplicateCompletedRegistration testa o reenvio de uma
// identidade cujo registro já concluiu a fase dois: duplicata, não retry.
func TestRegisterUser_DuplicateCompletedRegistration(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	existing := domain.UserRecord{
		ID: "uuid-existente",
		Profile: domain.RegistrationProfile{
			Email: "a@b.com",
			CI:    "V-1",
		},
		Status: domain.StatusFilesUploaded,
	}

	mockStore.On("Create", mock.Anything, mock.Anything).
		Return(domain.UserRecord{}, fmt.Errorf("create user: %w", domain.ErrUniqueViolation))
	mockStore.On("FindByEmailOrCI", mock.Anything, "a@b.com", "V-1").Return(existing, nil)

	_, err := svc.RegisterUser(context.Background(), validSubmission())

	var dupErr *apperror.DuplicateUserError
	assert.True(t, errors.As(err, &dupErr))
}

// TestRegisterUser_StoreFailure testa a propagação de falha do datastore.
func TestRegisterUser_StoreFailure(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	storeErr := apperror.NewStorageError("Falha ao inserir o registro no banco.", errors.New("connection refused"))
	mockStore.On("Create", mock.Anything, mock.Anything).Return(domain.UserRecord{}, storeErr)

	_, err := svc.RegisterUser(context.Background(), validSubmission())

	var storageErr *apperror.StorageError
	assert.True(t, errors.As(err, &storageErr))
}

// --- Fase dois ---

// TestAttachDocuments_Success testa o caminho feliz da fase dois: gravações
// sob chaves determinísticas e transição de status apenas ao final.
func TestAttachDocuments_Success(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	folderName := "18082025-V-1-Jane_Doe"
	record := domain.UserRecord{
		ID:         "uuid-1",
		FolderName: folderName,
		Status:     domain.StatusPendingFiles,
	}

	mockStore.On("FindByFolderName", mock.Anything, folderName).Return(record, nil)
	mockBlob.On("Write", mock.Anything, folderName+"/cedula.pdf", []byte("cedula-bytes"), "application/pdf").Return(nil)
	mockBlob.On("Write", mock.Anything, folderName+"/rif.pdf", []byte("rif-bytes"), "application/pdf").Return(nil)
	mockStore.On("UpdateStatus", mock.Anything, "uuid-1", domain.StatusFilesUploaded).Return(nil)

	updated, err := svc.AttachDocuments(context.Background(), folderName, requiredFiles())

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusFilesUploaded, updated.Status)
	mockStore.AssertExpectations(t)
	mockBlob.AssertExpectations(t)
}

// TestAttachDocuments_NotFound testa folder_name desconhecido: 404 e nenhuma
// gravação no blob store.
func TestAttachDocuments_NotFound(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	mockStore.On("FindByFolderName", mock.Anything, "pasta-inexistente").
		Return(domain.UserRecord{}, apperror.NewNotFoundError("Registro não encontrado."))

	_, err := svc.AttachDocuments(context.Background(), "pasta-inexistente", requiredFiles())

	var notFoundErr *apperror.NotFoundError
	assert.True(t, errors.As(err, &notFoundErr))
	mockBlob.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestAttachDocuments_AlreadyUploaded_Idempotent testa a repetição da fase
// dois para um registro já concluído: sucesso sem nenhuma regravação.
func TestAttachDocuments_AlreadyUploaded_Idempotent(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	folderName := "18082025-V-1-Jane_Doe"
	record := domain.UserRecord{
		ID:         "uuid-1",
		FolderName: folderName,
		Status:     domain.StatusFilesUploaded,
	}

	mockStore.On("FindByFolderName", mock.Anything, folderName).Return(record, nil)

	updated, err := svc.AttachDocuments(context.Background(), folderName, requiredFiles())

	assert.NoError(t, err)
	assert.Equal(t, domain.StatusFilesUploaded, updated.Status)
	mockBlob.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// TestAttachDocuments_BlobFailure testa a falha parcial: a primeira gravação
// funciona, a segunda falha; o status permanece PENDING_FILES e o erro
// identifica o documento que falhou.
func TestAttachDocuments_BlobFailure(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	folderName := "18082025-V-1-Jane_Doe"
	record := domain.UserRecord{
		ID:         "uuid-1",
		FolderName: folderName,
		Status:     domain.StatusPendingFiles,
	}

	mockStore.On("FindByFolderName", mock.Anything, folderName).Return(record, nil)
	mockBlob.On("Write", mock.Anything, folderName+"/cedula.pdf", mock.Anything, mock.Anything).Return(nil)
	mockBlob.On("Write", mock.Anything, folderName+"/rif.pdf", mock.Anything, mock.Anything).
		Return(errors.New("upstream timeout"))

	_, err := svc.AttachDocuments(context.Background(), folderName, requiredFiles())

	var storageErr *apperror.StorageError
	assert.True(t, errors.As(err, &storageErr))
	assert.Equal(t, "rif_file", storageErr.LogicalName)

	// A transição de status não acontece após falha parcial.
	mockStore.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// TestAttachDocuments_ValidationErrors cobre as regras locais dos documentos:
// nenhuma delas acessa o datastore.
func TestAttachDocuments_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		files []domain.AttachedFile
	}{
		{"sem arquivos", nil},
		{"slot desconhecido", []domain.AttachedFile{
			{LogicalName: "selfie", Content: []byte("x"), ContentType: "image/png"},
		}},
		{"slot obrigatório ausente", []domain.AttachedFile{
			{LogicalName: "id_file", Content: []byte("x"), ContentType: "application/pdf"},
		}},
		{"tipo de conteúdo não permitido", []domain.AttachedFile{
			{LogicalName: "id_file", Content: []byte("x"), ContentType: "application/zip"},
			{LogicalName: "rif_file", Content: []byte("x"), ContentType: "application/pdf"},
		}},
		{"mais de cinco arquivos", []domain.AttachedFile{
			{LogicalName: "id_file", Content: []byte("x"), ContentType: "application/pdf"},
			{LogicalName: "rif_file", Content: []byte("x"), ContentType: "application/pdf"},
			{LogicalName: "ref1_id", Content: []byte("x"), ContentType: "application/pdf"},
			{LogicalName: "ref2_id", Content: []byte("x"), ContentType: "application/pdf"},
			{LogicalName: "work_cert", Content: []byte("x"), ContentType: "application/pdf"},
			{LogicalName: "id_file", Content: []byte("x"), ContentType: "application/pdf"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(MockRegistrationStore)
			mockBlob := new(MockBlobClient)
			svc := newTestService(mockStore, mockBlob)

			_, err := svc.AttachDocuments(context.Background(), "18082025-V-1-Jane_Doe", tt.files)

			var validationErr *apperror.ValidationError
			assert.True(t, errors.As(err, &validationErr))
			mockStore.AssertNotCalled(t, "FindByFolderName", mock.Anything, mock.Anything)
			mockBlob.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// TestAttachDocuments_EmptyFolderName testa o folder_name ausente.
func TestAttachDocuments_EmptyFolderName(t *testing.T) {
	mockStore := new(MockRegistrationStore)
	mockBlob := new(MockBlobClient)
	svc := newTestService(mockStore, mockBlob)

	_, err := svc.AttachDocuments(context.Background(), "", requiredFiles())

	var validationErr *apperror.ValidationError
	assert.True(t, errors.As(err, &validationErr))
	mockStore.AssertNotCalled(t, "FindByFolderName", mock.Anything, mock.Anything)
}
