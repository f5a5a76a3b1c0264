package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound          = errors.New("recurso não encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrInvalidState      = errors.New("transição de estado não permitida")
	ErrStaleVersion      = errors.New("versão desatualizada: o documento foi modificado por outra operação")
	ErrEmptyItems        = errors.New("o documento deve ter ao menos um item antes do envio")
	ErrItemsLocked       = errors.New("itens só podem ser alterados em rascunho")
	ErrInvalidAccessKey  = errors.New("chave de acesso inválida")
	ErrShortCancelReason = errors.New("a justificativa de cancelamento deve ter no mínimo 15 caracteres")
	ErrCancelWindowOver  = errors.New("prazo legal de cancelamento expirado")
	ErrMissingProtocol   = errors.New("protocolo da SEFAZ é obrigatório")
)
