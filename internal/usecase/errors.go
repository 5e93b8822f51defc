package usecase

// Códigos de erro de domínio (falhas de negócio, não de infraestrutura).
const (
	CodeResolutionFailure = "resolution_failure"
	CodeUnauthorized      = "unauthorized"
	CodeLeadNotFound      = "lead_not_found"
)

// Códigos de erro técnico (infraestrutura; seguro re-tentar a operação
// inteira — a ingestão é idempotente por construção).
const (
	CodeTransientStore = "transient_store"
	CodeGatewayError   = "gateway_error"
)

type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func IsDomainError(err error) bool {
	_, ok := err.(*DomainError)
	return ok
}

type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	_, ok := err.(*TechnicalError)
	return ok
}
