package envelope

import (
	"net/http"
	"time"

	"impulsame/internal/domain"
	apperror "impulsame/internal/errors"
)

// Envelope é o documento uniforme retornado por toda chamada, sucesso ou
// falha. Clientes só podem assumir a presença de `success` e `message`.
// @Description Documento de resposta uniforme da API.
type Envelope struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	Data        interface{}          `json:"data,omitempty"`
	UserID      string               `json:"user_id,omitempty"`
	ErrorCode   string               `json:"error_code,omitempty"`
	Details     *domain.ErrorDetails `json:"details,omitempty"`
	Environment string               `json:"environment"`
	Timestamp   string               `json:"timestamp"`
}

// Builder é o Envelope Builder: função final e total entre um resultado e o
// documento de saída. Nunca retorna erro nem entra em pânico.
type Builder struct {
	environment string
	now         func() time.Time
}

// NewBuilder cria o Builder com o ambiente de deployment resolvido no boot.
// O timestamp é gerado a cada chamada, nunca cacheado.
func NewBuilder(environment string) *Builder {
	return &Builder{environment: environment, now: time.Now}
}

// NewBuilderWithClock permite injetar a fonte de tempo nos testes.
func NewBuilderWithClock(environment string, now func() time.Time) *Builder {
	return &Builder{environment: environment, now: now}
}

// Success constrói o envelope de sucesso.
func (b *Builder) Success(message string, data interface{}, userID string) Envelope {
	return Envelope{
		Success:     true,
		Message:     message,
		Data:        data,
		UserID:      userID,
		Environment: b.environment,
		Timestamp:   b.timestamp(),
	}
}

// Failure traduz um erro (tipado ou não) para o status HTTP e o envelope de
// falha. Erros de servidor (5xx) nunca vazam a causa concreta para o cliente;
// o detalhe fica no log interno do chamador.
func (b *Builder) Failure(err error) (int, Envelope) {
	status, errorCode, _ := apperror.MapToHTTPStatus(err)

	env := Envelope{
		Success:     false,
		ErrorCode:   errorCode,
		Environment: b.environment,
		Timestamp:   b.timestamp(),
	}

	switch e := err.(type) {
	case *apperror.ValidationError:
		env.Message = "Validation errors found"
		if len(e.Fields) > 0 {
			env.Details = &domain.ErrorDetails{Fields: e.Fields}
		}
	case *apperror.DuplicateUserError:
		env.Message = "A user with this email or ci is already registered"
	case *apperror.NotFoundError:
		env.Message = "User registration not found"
	case *apperror.StorageError:
		// Mensagem genérica; o slot que falhou é informação do próprio cliente.
		env.Message = "Internal server error"
		if e.LogicalName != "" {
			env.Details = &domain.ErrorDetails{LogicalName: e.LogicalName}
		}
	default:
		status = http.StatusInternalServerError
		env.ErrorCode = "INTERNAL_ERROR"
		env.Message = "Internal server error"
	}

	return status, env
}

func (b *Builder) timestamp() string {
	return b.now().UTC().Format(time.RFC3339)
}
