package sefaz

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"syscall"
	"time"

	pkgfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/pkg/fiscal"
)

// Política de retry para chamadas à SEFAZ: classificação pura de falhas
// (testável sem rede nem relógio) separada do driver imperativo.

// RetryConfig configuração explícita do retry. Sempre passada pelo chamador;
// nunca lida de estado global.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration // por tentativa
}

// DefaultRetryConfig política padrão: 3 tentativas, 2s de base, teto de 30s,
// 30s de timeout por tentativa.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// RetryError falha tipada após esgotar as tentativas: carrega o número de
// tentativas e a última causa.
type RetryError struct {
	Attempts int
	LastErr  error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("sefaz: %d tentativas esgotadas, última causa: %v", e.Attempts, e.LastErr)
}

func (e *RetryError) Unwrap() error { return e.LastErr }

// Status HTTP transitórios: vale a pena tentar de novo.
var retryableHTTPStatus = map[int]bool{
	500: true, 502: true, 503: true, 504: true, 408: true, 429: true,
}

// IsRetryableStatus indica se o status HTTP é transitório.
func IsRetryableStatus(statusCode int) bool {
	return retryableHTTPStatus[statusCode]
}

// IsRetryable classifica um erro de rede como transitório. Erros de negócio
// (4xx, rejeição da autoridade) NÃO são retryable: repetir mascararia defeitos.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Timeout da tentativa (context da tentativa expirou, não o do chamador).
	return errors.Is(err, context.DeadlineExceeded)
}

// IsAuthorityRetryable indica os cStat transitórios da própria SEFAZ
// (serviço paralisado momentaneamente ou sem previsão). Mapeiam para um
// backoff longo, não para retry imediato.
func IsAuthorityRetryable(cStat int) bool {
	return cStat == pkgfiscal.CStatServicePaused || cStat == pkgfiscal.CStatServiceStopped
}

// CalculateDelay devolve min(base × 2^attempt + jitter(0,1s), max): backoff
// exponencial com jitter para evitar rajadas sincronizadas contra a SEFAZ.
func CalculateDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := baseDelay << uint(attempt)
	if delay <= 0 || delay > maxDelay {
		return maxDelay
	}
	delay += time.Duration(rand.Intn(1000)) * time.Millisecond
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// ExecuteWithRetry executa a operação contra a autoridade com timeout por
// tentativa. Falha não-retryable retorna imediatamente, sem consumir as
// tentativas restantes; resposta com cStat transitório da SEFAZ espera o
// backoff longo antes de repetir. Após esgotar as tentativas devolve
// *RetryError com a última causa.
func ExecuteWithRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) (*Response, error)) (*Response, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		resp, err := op(attemptCtx)
		if cancel != nil {
			cancel()
		}

		var delay time.Duration
		switch {
		case err == nil && resp != nil && IsAuthorityRetryable(resp.CStat):
			// Serviço paralisado: espera longa antes de insistir.
			lastErr = fmt.Errorf("sefaz: serviço paralisado (cStat %d): %s", resp.CStat, resp.Message)
			delay = cfg.MaxDelay
		case err == nil && resp != nil && IsRetryableStatus(resp.StatusCode):
			lastErr = fmt.Errorf("sefaz: HTTP %d transitório", resp.StatusCode)
			delay = CalculateDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)
		case err == nil:
			// Sucesso ou rejeição de negócio: ambos voltam intocados ao chamador.
			return resp, nil
		case IsRetryable(err):
			lastErr = err
			delay = CalculateDelay(attempt, cfg.BaseDelay, cfg.MaxDelay)
		default:
			// Erro não transitório: repetir não conserta.
			return nil, err
		}

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, &RetryError{Attempts: cfg.MaxAttempts, LastErr: lastErr}
}
