package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
const (
	codeNotAParty               = "NOT_A_PARTY"
	codePermissionDenied        = "PERMISSION_DENIED"
	codeUnauthenticated         = "UNAUTHENTICATED"
	codeCreatorNotAParty        = "CREATOR_NOT_A_PARTY"
	codeAlreadySigned           = "ALREADY_SIGNED"
	codeInvalidState            = "INVALID_STATE"
	codeTransactionExpired      = "TRANSACTION_EXPIRED"
	codeComplianceRejected      = "COMPLIANCE_REJECTED"
	codeAssetMutationFailed     = "ASSET_MUTATION_FAILED"
	codeDuplicateParty          = "DUPLICATE_PARTY"
	codeEmptyPartyList          = "EMPTY_PARTY_LIST"
	codeInvalidKind             = "INVALID_KIND"
	codeInvalidArgument         = "INVALID_ARGUMENT"
	codeAssetNotFound           = "ASSET_NOT_FOUND"
	codeNotFound                = "NOT_FOUND"
	codeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	codeVersionConflict         = "VERSION_CONFLICT"
	codeAuditChainBroken        = "AUDIT_CHAIN_BROKEN"
)

var enUS = map[Code]string{
	codeNotAParty:               "You are not a party to this transaction.",
	codePermissionDenied:        "You are not allowed to view this transaction.",
	codeUnauthenticated:         "Authentication is required.",
	codeCreatorNotAParty:        "The creator must be one of the parties.",
	codeAlreadySigned:           "You have already signed this transaction.",
	codeInvalidState:            "The transaction is {{.status}} and cannot be {{.operation}}.",
	codeTransactionExpired:      "The transaction expired at {{.expires_at}}.",
	codeComplianceRejected:      "The transaction was rejected by compliance: {{.reason}}.",
	codeAssetMutationFailed:     "Updating asset {{.asset_id}} failed; the transaction was not executed.",
	codeDuplicateParty:          "Party {{.principal}} is listed more than once.",
	codeEmptyPartyList:          "A transaction needs at least one party.",
	codeInvalidKind:             "Unknown transaction kind {{.kind}}.",
	codeInvalidArgument:         "The request is invalid: {{.field}}.",
	codeAssetNotFound:           "Asset {{.asset_id}} does not exist.",
	codeNotFound:                "The requested {{.resource}} was not found.",
	codeCollaboratorUnavailable: "A dependent service is unavailable; please retry.",
	codeVersionConflict:         "The transaction was modified concurrently; please retry.",
	codeAuditChainBroken:        "The audit trail failed verification at entry {{.seq}}.",
}

var ptBR = map[Code]string{
	codeNotAParty:               "Você não é parte desta transação.",
	codePermissionDenied:        "Você não tem permissão para ver esta transação.",
	codeUnauthenticated:         "É necessário autenticar-se.",
	codeCreatorNotAParty:        "O criador precisa ser uma das partes.",
	codeAlreadySigned:           "Você já assinou esta transação.",
	codeInvalidState:            "A transação está {{.status}} e não pode ser {{.operation}}.",
	codeTransactionExpired:      "A transação expirou em {{.expires_at}}.",
	codeComplianceRejected:      "A transação foi rejeitada pela conformidade: {{.reason}}.",
	codeAssetMutationFailed:     "A atualização do ativo {{.asset_id}} falhou; a transação não foi executada.",
	codeDuplicateParty:          "A parte {{.principal}} aparece mais de uma vez.",
	codeEmptyPartyList:          "Uma transação precisa de pelo menos uma parte.",
	codeInvalidKind:             "Tipo de transação desconhecido {{.kind}}.",
	codeInvalidArgument:         "A requisição é inválida: {{.field}}.",
	codeAssetNotFound:           "O ativo {{.asset_id}} não existe.",
	codeNotFound:                "O recurso {{.resource}} não foi encontrado.",
	codeCollaboratorUnavailable: "Um serviço dependente está indisponível; tente novamente.",
	codeVersionConflict:         "A transação foi modificada concorrentemente; tente novamente.",
	codeAuditChainBroken:        "A trilha de auditoria falhou na verificação na entrada {{.seq}}.",
}
