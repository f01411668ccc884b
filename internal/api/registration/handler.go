package registration

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"impulsame/internal/api/envelope"
	"impulsame/internal/domain"
	apperror "impulsame/internal/errors"
	"impulsame/internal/pkg/logger"
)

// Handler agrupa os métodos de Handler do registro em duas fases.
type Handler struct {
	Service  domain.RegistrationService
	Envelope *envelope.Builder
	Logger   logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service,
// o Envelope Builder e o Logger.
func NewHandler(svc domain.RegistrationService, env *envelope.Builder, log logger.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Envelope: env,
		Logger:   log,
	}
}

// attachRequest é o payload da fase dois.
type attachRequest struct {
	FolderName string       `json:"folder_name"`
	Files      []attachFile `json:"files"`
}

// attachFile é um documento da fase dois, com conteúdo em base64.
type attachFile struct {
	LogicalName string `json:"logical_name"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

// writeEnvelope serializa o envelope com o status HTTP informado.
func (h *Handler) writeEnvelope(w http.ResponseWriter, status int, env envelope.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.Logger.Error("Falha ao codificar JSON de resposta.", err)
	}
}

// handleServiceError traduz o erro do serviço para o envelope de falha.
// A causa concreta de erros 5xx vai apenas para o log interno.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, env := h.Envelope.Failure(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor em %s:", r.URL.Path), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d.", status), map[string]interface{}{
			"path":       r.URL.Path,
			"error_code": env.ErrorCode,
		})
	}

	h.writeEnvelope(w, status, env)
}

// RegisterUserHandler lida com a requisição POST /v1/users/register (fase um).
// @Summary Registra um novo usuário (fase um, somente dados textuais)
// @Description Valida a submissão, deriva o folder_name determinístico e cria o registro com status PENDING_FILES.
// @Tags users
// @Accept json
// @Produce json
// @Param registration body domain.RegistrationProfile true "Dados textuais do perfil"
// @Success 201 {object} envelope.Envelope "Usuário registrado; data.folder_name identifica a futura pasta de documentos"
// @Failure 400 {object} envelope.Envelope "Erros de validação (details.fields, na ordem de submissão)"
// @Failure 409 {object} envelope.Envelope "Email ou ci já registrados por outro usuário (error_code USER_EXISTS)"
// @Failure 500 {object} envelope.Envelope "Falha de storage ou erro interno"
// @Router /v1/users/register [post]
func (h *Handler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.handleServiceError(w, r, apperror.NewValidationError("Falha ao ler o corpo da requisição."))
		return
	}

	submission, err := parseRawSubmission(body)
	if err != nil {
		h.handleServiceError(w, r, apperror.NewValidationError("Payload JSON inválido."))
		return
	}

	record, err := h.Service.RegisterUser(ctx, submission)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	env := h.Envelope.Success("User registered successfully", map[string]interface{}{
		"folder_name":    record.FolderName,
		"files_uploaded": record.Status == domain.StatusFilesUploaded,
		"next_step":      "Upload documents using the document-upload endpoint",
	}, record.ID)

	h.writeEnvelope(w, http.StatusCreated, env)
}

// AttachDocumentsHandler lida com a requisição POST /v1/users/files (fase dois).
// @Summary Anexa os documentos de um registro (fase dois)
// @Description Grava cada documento no blob store sob folder_name/nome_canonico e transiciona o status para FILES_UPLOADED.
// @Tags users
// @Accept json
// @Produce json
// @Param attachment body attachRequest true "folder_name da fase um e lista de documentos em base64"
// @Success 200 {object} envelope.Envelope "Documentos gravados; data.files_uploaded = true"
// @Failure 400 {object} envelope.Envelope "Payload ou documentos inválidos"
// @Failure 404 {object} envelope.Envelope "folder_name desconhecido"
// @Failure 500 {object} envelope.Envelope "Falha de storage (details.logical_name identifica o documento que falhou)"
// @Router /v1/users/files [post]
func (h *Handler) AttachDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Método não permitido", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req attachRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceError(w, r, apperror.NewValidationError("Payload JSON inválido."))
		return
	}

	files := make([]domain.AttachedFile, 0, len(req.Files))
	for _, f := range req.Files {
		content, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			h.handleServiceError(w, r, apperror.NewFieldValidationError([]domain.FieldError{
				{Field: f.LogicalName, Reason: "content must be valid base64"},
			}))
			return
		}
		files = append(files, domain.AttachedFile{
			LogicalName: f.LogicalName,
			Content:     content,
			ContentType: f.ContentType,
		})
	}

	record, err := h.Service.AttachDocuments(ctx, req.FolderName, files)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	env := h.Envelope.Success("Documents uploaded successfully", map[string]interface{}{
		"folder_name":    record.FolderName,
		"files_uploaded": record.Status == domain.StatusFilesUploaded,
		"status":         record.Status,
	}, record.ID)

	h.writeEnvelope(w, http.StatusOK, env)
}

// parseRawSubmission decodifica o objeto JSON de nível superior preservando a
// ordem dos campos, que alimenta a ordenação da lista de erros do Validador.
// Valores escalares viram string; objetos, arrays e null são ignorados.
func parseRawSubmission(data []byte) (*domain.RawSubmission, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("o payload deve ser um objeto JSON")
	}

	submission := domain.NewRawSubmission()

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("chave de objeto inválida")
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}

		if value, scalar := scalarToString(raw); scalar {
			submission.Set(key, value)
		}
	}

	// Consome o '}' final para validar o fechamento do objeto.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return submission, nil
}

// scalarToString converte um valor JSON escalar para string.
// Retorna false para objetos, arrays e null.
func scalarToString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	default:
		if bytes.Equal(trimmed, []byte("null")) {
			return "", false
		}
		// Números e booleanos entram na forma textual original.
		return string(trimmed), true
	}
}
