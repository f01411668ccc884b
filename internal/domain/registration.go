package domain

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RegistrationStatus representa o estado do registro no ciclo de vida de duas fases.
type RegistrationStatus string

// Constantes para os estados do registro.
const (
	// StatusPendingFiles: fase um concluída, aguardando o envio dos documentos.
	StatusPendingFiles RegistrationStatus = "PENDING_FILES"
	// StatusFilesUploaded: fase dois concluída, todos os documentos obrigatórios gravados.
	StatusFilesUploaded RegistrationStatus = "FILES_UPLOADED"
)

// ActivityType é um tipo string para a atividade econômica declarada pelo usuário.
type ActivityType string

const (
	ActivityDependencia   ActivityType = "dependencia"
	ActivityIndependiente ActivityType = "independiente"
	ActivityJubilado      ActivityType = "jubilado"
	ActivityOtro          ActivityType = "otro"
)

// ValidActivityTypes lista os valores aceitos pelo Validador.
var ValidActivityTypes = []ActivityType{
	ActivityDependencia,
	ActivityIndependiente,
	ActivityJubilado,
	ActivityOtro,
}

// IsValidActivityType verifica se o valor informado pertence ao enum.
func IsValidActivityType(value string) bool {
	for _, at := range ValidActivityTypes {
		if string(at) == value {
			return true
		}
	}
	return false
}

// RegistrationProfile representa a submissão textual já validada (fase um).
// Imutável após a criação do registro, exceto pelos campos de status no UserRecord.
type RegistrationProfile struct {
	Email         string       `json:"email"`
	FullName      string       `json:"full_name"`
	CI            string       `json:"ci"`
	Phone1        string       `json:"phone1"`
	Phone2        string       `json:"phone2,omitempty"`
	Address       string       `json:"address,omitempty"`
	Instagram     string       `json:"instagram,omitempty"`
	Facebook      string       `json:"facebook,omitempty"`
	Tiktok        string       `json:"tiktok,omitempty"`
	Ref1Name      string       `json:"ref1_name,omitempty"`
	Ref1Relation  string       `json:"ref1_relation,omitempty"`
	Ref2Name      string       `json:"ref2_name,omitempty"`
	Ref2Relation  string       `json:"ref2_relation,omitempty"`
	MonthlyIncome string       `json:"monthly_income"`
	ActivityType  ActivityType `json:"activity_type"`
	Position      string       `json:"position,omitempty"`
	BirthDate     string       `json:"birth_date,omitempty"` // Formato YYYY-MM-DD
}

// UserRecord é a entidade persistida, de posse exclusiva do Registration Store.
type UserRecord struct {
	ID         string              `json:"user_id"`
	Profile    RegistrationProfile `json:"profile"`
	FolderName string              `json:"folder_name"`
	Status     RegistrationStatus  `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
}

// FieldError representa uma falha de validação em um campo específico da submissão.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// AttachedFile é a entrada transitória da fase dois: um documento por slot lógico.
// Não é persistida como entidade; seu efeito é uma gravação no Blob Adapter.
type AttachedFile struct {
	LogicalName string
	Content     []byte
	ContentType string
}

// DocumentSlots mapeia o nome lógico do documento para o nome canônico
// do arquivo gravado dentro da pasta do usuário.
var DocumentSlots = map[string]string{
	"id_file":   "cedula.pdf",
	"rif_file":  "rif.pdf",
	"ref1_id":   "ref1_cedula.pdf",
	"ref2_id":   "ref2_cedula.pdf",
	"work_cert": "constancia.pdf",
}

// RequiredDocumentSlots são os slots que precisam estar presentes para
// concluir a fase dois.
var RequiredDocumentSlots = []string{"id_file", "rif_file"}

// ErrUniqueViolation é o resultado distinguível de um create-if-absent que
// colidiu com a restrição de unicidade (email ou ci já existentes).
// O Orquestrador usa este sentinela para diferenciar "duplicata verdadeira"
// de "reenvio seguro" consultando o registro conflitante.
var ErrUniqueViolation = errors.New("unique constraint violation")

// sanitizeRe remove qualquer caractere fora do conjunto seguro (alfanumérico e underscore).
var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// whitespaceRe colapsa sequências de espaço em um único underscore.
var whitespaceRe = regexp.MustCompile(`\s+`)

// FolderNameFor é o Identity Namer: função pura de (perfil validado, data de
// referência) para a chave determinística `<DDMMYYYY>-<ci>-<nome_sanitizado>`.
// É calculada uma única vez na fase um e armazenada verbatim no UserRecord;
// a fase dois a recebe inalterada como chave de correlação.
func FolderNameFor(profile RegistrationProfile, date time.Time) string {
	name := strings.TrimSpace(profile.FullName)
	name = whitespaceRe.ReplaceAllString(name, "_")
	name = sanitizeRe.ReplaceAllString(name, "")
	return fmt.Sprintf("%s-%s-%s", date.Format("02012006"), profile.CI, name)
}

// RegistrationStore define o contrato de persistência da entidade UserRecord.
// Create deve retornar ErrUniqueViolation (possivelmente encapsulado) quando
// a restrição de unicidade de email/ci já estiver ocupada.
type RegistrationStore interface {
	Create(ctx context.Context, record UserRecord) (UserRecord, error)
	FindByEmailOrCI(ctx context.Context, email, ci string) (UserRecord, error)
	FindByFolderName(ctx context.Context, folderName string) (UserRecord, error)
	UpdateStatus(ctx context.Context, userID string, status RegistrationStatus) error
}

// RegistrationService define o contrato de lógica de negócio do registro em duas fases.
type RegistrationService interface {
	RegisterUser(ctx context.Context, submission *RawSubmission) (UserRecord, error)
	AttachDocuments(ctx context.Context, folderName string, files []AttachedFile) (UserRecord, error)
}

// RawSubmission é a submissão bruta chave-valor, preservando a ordem em que
// os campos apareceram no payload. A ordem alimenta a lista de erros do
// Validador, garantindo exibição determinística no cliente.
type RawSubmission struct {
	values map[string]string
	order  []string
}

// NewRawSubmission cria uma submissão vazia.
func NewRawSubmission() *RawSubmission {
	return &RawSubmission{values: make(map[string]string)}
}

// Set registra o valor de um campo. A primeira ocorrência define a posição
// do campo na ordem de submissão.
func (s *RawSubmission) Set(field, value string) {
	if _, exists := s.values[field]; !exists {
		s.order = append(s.order, field)
	}
	s.values[field] = value
}

// Get retorna o valor de um campo e se ele foi submetido.
func (s *RawSubmission) Get(field string) (string, bool) {
	value, ok := s.values[field]
	return value, ok
}

// Fields retorna os nomes dos campos na ordem em que foram submetidos.
func (s *RawSubmission) Fields() []string {
	return s.order
}
