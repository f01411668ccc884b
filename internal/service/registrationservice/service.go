package registrationservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"impulsame/internal/domain"
	apperror "impulsame/internal/errors"
	"impulsame/internal/pkg/blob"
	"impulsame/internal/pkg/logger"
)

// Limites dos documentos da fase dois (herdados do formulário de cadastro).
const (
	maxFileSize        = 10 * 1024 * 1024 // 10 MiB por documento
	maxFilesPerRequest = 5
)

// allowedContentTypes lista os tipos aceitos para os documentos enviados.
var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/png":          true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Service é o Orquestrador do registro em duas fases. É o único escritor do
// status do UserRecord; a durabilidade do registro pertence ao Store e a dos
// arquivos ao Blob Adapter.
type Service struct {
	store  domain.RegistrationStore
	blob   blob.Client
	logger logger.Logger

	// Now é a fonte de tempo do serviço. Exportada para permitir injeção
	// determinística nos testes (naming e validação de birth_date).
	Now func() time.Time
}

// NewService cria e retorna uma nova instância do Orquestrador de registro.
func NewService(store domain.RegistrationStore, blobClient blob.Client, logger logger.Logger) *Service {
	return &Service{
		store:  store,
		blob:   blobClient,
		logger: logger,
		Now:    time.Now,
	}
}

// RegisterUser executa a fase um: valida a submissão textual, deriva o
// folder_name determinístico e cria o UserRecord com status PENDING_FILES.
// Exatamente um registro existe por (email, ci) distinto, independente do
// número de retries: a restrição de unicidade do banco decide a corrida e o
// reenvio da mesma identidade é respondido com o registro já existente.
func (s *Service) RegisterUser(ctx context.Context, submission *domain.RawSubmission) (domain.UserRecord, error) {
	now := s.Now()

	// 1. Validação. Em caso de falha, nenhum acesso ao storage ocorre.
	profile, fieldErrs := ValidateRegistration(submission, now)
	if len(fieldErrs) > 0 {
		s.logger.Debug("Submissão de registro rejeitada pela validação.", map[string]interface{}{
			"error_count": len(fieldErrs),
		})
		return domain.UserRecord{}, apperror.NewFieldValidationError(fieldErrs)
	}

	// 2. Identity Namer: chave determinística calculada uma única vez.
	folderName := domain.FolderNameFor(profile, now)

	record := domain.UserRecord{
		ID:         uuid.NewString(),
		Profile:    profile,
		FolderName: folderName,
		Status:     domain.StatusPendingFiles,
		CreatedAt:  now.UTC(),
	}

	// 3. Create-if-absent: a violação de unicidade é um resultado
	// distinguível, não uma exceção genérica.
	created, err := s.store.Create(ctx, record)
	if err != nil {
		if errors.Is(err, domain.ErrUniqueViolation) {
			return s.resolveUniqueConflict(ctx, profile)
		}
		// Erros de storage já chegam tipados do repositório.
		return domain.UserRecord{}, err
	}

	s.logger.Info("Usuário registrado com sucesso (fase um).", map[string]interface{}{
		"user_id":     created.ID,
		"folder_name": created.FolderName,
	})
	return created, nil
}

// resolveUniqueConflict decide entre "reenvio seguro" e "duplicata verdadeira"
// comparando o registro conflitante com a submissão atual.
func (s *Service) resolveUniqueConflict(ctx context.Context, profile domain.RegistrationProfile) (domain.UserRecord, error) {
	existing, err := s.store.FindByEmailOrCI(ctx, profile.Email, profile.CI)
	if err != nil {
		var notFound *apperror.NotFoundError
		if errors.As(err, &notFound) {
			// O registro vencedor da corrida sumiu entre o INSERT e o SELECT.
			// Cenário anômalo: reportamos como falha de storage para o caller
			// tentar de novo.
			return domain.UserRecord{}, apperror.NewStorageError("Falha ao resolver o conflito de unicidade.", err)
		}
		return domain.UserRecord{}, err
	}

	sameIdentity := existing.Profile.Email == profile.Email && existing.Profile.CI == profile.CI

	if sameIdentity && existing.Status == domain.StatusPendingFiles {
		// Reenvio idempotente: mesma identidade, registro ainda aguardando
		// arquivos. Devolve o registro existente sem criar duplicata.
		s.logger.Info("Reenvio de registro tratado como retry idempotente.", map[string]interface{}{
			"user_id":     existing.ID,
			"folder_name": existing.FolderName,
		})
		return existing, nil
	}

	// Identidade parcial (só o email ou só o ci colidiu) ou registro já
	// concluído: duplicata verdadeira, nada é mutado.
	return domain.UserRecord{}, apperror.NewDuplicateUserError(
		"Já existe um registro com este email ou ci.")
}

// AttachDocuments executa a fase dois: grava cada documento no blob store sob
// `folder_name/nome_canonico` e, somente após todas as gravações, transiciona
// o status para FILES_UPLOADED. Falha parcial deixa o status em PENDING_FILES
// e identifica qual documento falhou; o retry é responsabilidade do caller e
// é seguro porque as chaves de gravação são determinísticas.
func (s *Service) AttachDocuments(ctx context.Context, folderName string, files []domain.AttachedFile) (domain.UserRecord, error) {
	// 1. Validação local da requisição.
	if folderName == "" {
		return domain.UserRecord{}, apperror.NewValidationError("O campo folder_name é obrigatório.")
	}
	if fieldErrs := validateAttachedFiles(files); len(fieldErrs) > 0 {
		return domain.UserRecord{}, apperror.NewFieldValidationError(fieldErrs)
	}

	// 2. Busca pelo folder_name (chave de correlação, recebida verbatim).
	record, err := s.store.FindByFolderName(ctx, folderName)
	if err != nil {
		return domain.UserRecord{}, err
	}

	// 3. Registro já concluído: sucesso idempotente, nenhuma regravação.
	if record.Status == domain.StatusFilesUploaded {
		s.logger.Info("Fase dois repetida para registro já concluído; nenhum upload executado.", map[string]interface{}{
			"folder_name": folderName,
		})
		return record, nil
	}

	// 4. Gravação dos documentos. A primeira falha interrompe e é reportada
	// com o nome lógico; gravações anteriores não sofrem rollback.
	for _, file := range files {
		key := folderName + "/" + domain.DocumentSlots[file.LogicalName]
		if err := s.blob.Write(ctx, key, file.Content, file.ContentType); err != nil {
			s.logger.Error(fmt.Sprintf("Falha ao gravar documento '%s' no blob store.", file.LogicalName), err)
			return domain.UserRecord{}, apperror.NewBlobWriteError(file.LogicalName, err)
		}
		s.logger.Debug("Documento gravado no blob store.", map[string]interface{}{
			"key": key,
		})
	}

	// 5. Transição de status, somente após as gravações desta chamada.
	if err := s.store.UpdateStatus(ctx, record.ID, domain.StatusFilesUploaded); err != nil {
		return domain.UserRecord{}, err
	}

	record.Status = domain.StatusFilesUploaded
	s.logger.Info("Documentos anexados com sucesso (fase dois).", map[string]interface{}{
		"user_id":     record.ID,
		"folder_name": folderName,
		"file_count":  len(files),
	})
	return record, nil
}

// validateAttachedFiles aplica as regras locais dos documentos da fase dois:
// slots conhecidos, slots obrigatórios presentes, tipo e tamanho permitidos.
func validateAttachedFiles(files []domain.AttachedFile) []domain.FieldError {
	var errs []domain.FieldError

	if len(files) == 0 {
		return []domain.FieldError{{Field: "files", Reason: "at least one file is required"}}
	}
	if len(files) > maxFilesPerRequest {
		return []domain.FieldError{{Field: "files", Reason: fmt.Sprintf("at most %d files are allowed per request", maxFilesPerRequest)}}
	}

	present := make(map[string]bool)
	for _, file := range files {
		if _, known := domain.DocumentSlots[file.LogicalName]; !known {
			errs = append(errs, domain.FieldError{Field: file.LogicalName, Reason: "is not a known document slot"})
			continue
		}
		present[file.LogicalName] = true
		if len(file.Content) == 0 {
			errs = append(errs, domain.FieldError{Field: file.LogicalName, Reason: "content must not be empty"})
		}
		if len(file.Content) > maxFileSize {
			errs = append(errs, domain.FieldError{Field: file.LogicalName, Reason: "exceeds the maximum size of 10 MiB"})
		}
		if !allowedContentTypes[file.ContentType] {
			errs = append(errs, domain.FieldError{Field: file.LogicalName, Reason: "content type is not allowed"})
		}
	}

	for _, slot := range domain.RequiredDocumentSlots {
		if !present[slot] {
			errs = append(errs, domain.FieldError{Field: slot, Reason: "is required"})
		}
	}

	return errs
}
