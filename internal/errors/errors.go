package errors

import (
	"fmt"
	"net/http"

	"impulsame/internal/domain"
)

// AppError é a interface central para todos os erros customizados do serviço.
// Ela permite que o código externo (Handler, Envelope) acesse a Categoria
// (que também serve como error_code na resposta) e o status HTTP sugerido.
type AppError interface {
	Error() string    // Implementa a interface error padrão do Go
	Category() string // Código do erro na resposta (e.g., "VALIDATION_ERROR", "USER_EXISTS")
	HTTPStatus() int  // Código HTTP sugerido para o Handler
	Unwrap() error    // Permite encapsular erros subjacentes (original error)
}

// --- Tipos de Erro Específicos (Erros de Domínio) ---

// ValidationError representa falhas de validação de dados de entrada.
// Carrega a lista ordenada de erros por campo, na ordem de submissão.
type ValidationError struct {
	Msg    string
	Fields []domain.FieldError
}

func (e *ValidationError) Error() string    { return fmt.Sprintf("Erro de Validação: %s", e.Msg) }
func (e *ValidationError) Category() string { return "VALIDATION_ERROR" }
func (e *ValidationError) HTTPStatus() int  { return http.StatusBadRequest } // 400
func (e *ValidationError) Unwrap() error    { return nil }

// NewValidationError cria um novo erro de validação sem detalhamento por campo.
func NewValidationError(msg string) AppError {
	return &ValidationError{Msg: msg}
}

// NewFieldValidationError cria um erro de validação com a lista ordenada de campos.
func NewFieldValidationError(fields []domain.FieldError) AppError {
	return &ValidationError{Msg: "Um ou mais campos da submissão são inválidos.", Fields: fields}
}

// DuplicateUserError representa uma submissão que colide com um registro
// existente e distinto (email ou ci já pertencem a outro usuário).
type DuplicateUserError struct {
	Msg string
}

func (e *DuplicateUserError) Error() string    { return fmt.Sprintf("Usuário duplicado: %s", e.Msg) }
func (e *DuplicateUserError) Category() string { return "USER_EXISTS" }
func (e *DuplicateUserError) HTTPStatus() int  { return http.StatusConflict } // 409
func (e *DuplicateUserError) Unwrap() error    { return nil }

// NewDuplicateUserError cria um novo erro de usuário duplicado.
func NewDuplicateUserError(msg string) AppError {
	return &DuplicateUserError{Msg: msg}
}

// NotFoundError representa a ausência de um recurso solicitado
// (e.g., fase dois com folder_name desconhecido).
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string    { return fmt.Sprintf("Recurso não encontrado: %s", e.Msg) }
func (e *NotFoundError) Category() string { return "USER_NOT_FOUND" }
func (e *NotFoundError) HTTPStatus() int  { return http.StatusNotFound } // 404
func (e *NotFoundError) Unwrap() error    { return nil }

// NewNotFoundError cria um novo erro de recurso não encontrado.
func NewNotFoundError(msg string) AppError {
	return &NotFoundError{Msg: msg}
}

// --- Tipos de Erro de Infraestrutura (Encapsulamento) ---

// StorageError representa falhas nas dependências de armazenamento
// (banco relacional ou blob store), incluindo timeouts. A causa concreta
// fica no Err para o log interno; a mensagem ao cliente é sempre genérica.
type StorageError struct {
	Msg         string
	LogicalName string // Slot de documento cuja gravação falhou (fase dois), se houver
	Err         error  // Erro original subjacente (e.g., erro do driver SQL)
}

func (e *StorageError) Error() string    { return fmt.Sprintf("Erro de Storage: %s", e.Msg) }
func (e *StorageError) Category() string { return "STORAGE_ERROR" }
func (e *StorageError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *StorageError) Unwrap() error    { return e.Err }

// NewStorageError cria um erro de falha nas dependências de armazenamento.
func NewStorageError(msg string, err error) AppError {
	return &StorageError{Msg: msg, Err: err}
}

// NewBlobWriteError cria um StorageError identificando qual documento falhou.
func NewBlobWriteError(logicalName string, err error) AppError {
	return &StorageError{
		Msg:         fmt.Sprintf("Falha ao gravar o documento '%s'.", logicalName),
		LogicalName: logicalName,
		Err:         err,
	}
}

// InternalError representa falhas inesperadas no servidor, serviço ou repositório.
type InternalError struct {
	Msg string
	Err error
}

func (e *InternalError) Error() string    { return fmt.Sprintf("Erro Interno: %s", e.Msg) }
func (e *InternalError) Category() string { return "INTERNAL_ERROR" }
func (e *InternalError) HTTPStatus() int  { return http.StatusInternalServerError } // 500
func (e *InternalError) Unwrap() error    { return e.Err }

// NewInternalError cria um erro de servidor (para falhas de lógica ou código não esperado).
func NewInternalError(msg string, err error) AppError {
	return &InternalError{Msg: msg, Err: err}
}

// --- Helper para o Handler (Tradução Final) ---

// MapToHTTPStatus recebe um erro e o traduz para o código HTTP e categoria.
func MapToHTTPStatus(err error) (int, string, string) {
	if appErr, ok := err.(AppError); ok {
		// O erro é tipado (ValidationError, DuplicateUserError, etc.)
		return appErr.HTTPStatus(), appErr.Category(), appErr.Error()
	}

	// Erro não tipado (e.g., erro simples de pacote Go que não implementa AppError)
	// Tratar como erro interno genérico.
	return http.StatusInternalServerError, "INTERNAL_ERROR", "Ocorreu um erro inesperado."
}
