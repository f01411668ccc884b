package domain

// ErrorDetails é a estrutura padronizada do campo `details` nas respostas de erro.
// @Description Detalhe estruturado de um erro retornado pela API.
type ErrorDetails struct {
	// Lista ordenada de erros por campo (erros de validação).
	Fields []FieldError `json:"fields,omitempty"`
	// Nome lógico do documento cuja gravação falhou (erros de storage na fase dois).
	LogicalName string `json:"logical_name,omitempty"`
}
