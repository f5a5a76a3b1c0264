// engine é o executável de lote do motor fiscal: apropriação mensal do CIAP,
// geração de arquivos SPED e reenvio de documentos para autorização.
//
// Uso:
//
//	engine apportion -org 1 -branch 1 -period 202609 -taxable 800000.00 -total 1000000.00
//	engine sped -org 1 -branch 1 -cnpj 06117473000150 -name "EMPRESA LTDA" -uf GO -from 2026-01-01 -to 2026-01-31
//	engine authorize -org 1 -branch 1 -doc 7b6c...
//	engine cancel -org 1 -branch 1 -doc 7b6c... -reason "erro na digitação dos itens"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/application/ciap"
	appfiscal "github.com/pedrojuniorgyn/AuraCore-sub019/internal/application/fiscal"
	appsped "github.com/pedrojuniorgyn/AuraCore-sub019/internal/application/sped"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/postgres"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/sefaz"
	"github.com/pedrojuniorgyn/AuraCore-sub019/internal/infrastructure/sefaz/signer"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/config"
	"github.com/pedrojuniorgyn/AuraCore-sub019/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "uso: engine <apportion|sped|authorize|cancel> [flags]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("command", os.Args[1]).
		Msg("iniciando motor fiscal")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão PostgreSQL")
	}
	defer pool.Close()

	switch os.Args[1] {
	case "apportion":
		runApportion(ctx, pool, log, os.Args[2:])
	case "sped":
		runSped(ctx, pool, cfg, log, os.Args[2:])
	case "authorize":
		runAuthorize(ctx, pool, cfg, log, os.Args[2:])
	case "cancel":
		runCancel(ctx, pool, cfg, log, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "comando desconhecido %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runApportion(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger, args []string) {
	fs := flag.NewFlagSet("apportion", flag.ExitOnError)
	org := fs.Int64("org", 0, "organização")
	branch := fs.Int64("branch", 0, "filial")
	period := fs.String("period", "", "período AAAAMM")
	taxable := fs.String("taxable", "0", "receita tributada do mês")
	total := fs.String("total", "0", "receita total do mês")
	_ = fs.Parse(args)

	taxableRevenue, err := decimal.NewFromString(*taxable)
	if err != nil {
		log.Fatal().Err(err).Msg("receita tributada inválida")
	}
	totalRevenue, err := decimal.NewFromString(*total)
	if err != nil {
		log.Fatal().Err(err).Msg("receita total inválida")
	}

	engine := ciap.NewEngine(
		postgres.NewCreditControlRepository(pool),
		postgres.NewApportionmentRepository(pool),
		postgres.NewTxRunner(pool),
		log.WithComponent("ciap"),
	)
	summary, err := engine.Run(ctx, ciap.RunInput{
		OrganizationID: *org,
		BranchID:       *branch,
		Period:         *period,
		TaxableRevenue: taxableRevenue,
		TotalRevenue:   totalRevenue,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("apropriação mensal")
	}
	log.Info().
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Str("appropriated", summary.Appropriated.StringFixed(2)).
		Msg("lote concluído")
}

func runAuthorize(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, log *logger.Logger, args []string) {
	fs := flag.NewFlagSet("authorize", flag.ExitOnError)
	org := fs.Int64("org", 0, "organização")
	branch := fs.Int64("branch", 0, "filial")
	docID := fs.String("doc", "", "id do documento em rascunho")
	_ = fs.Parse(args)

	cert, err := signer.LoadFromPEM(cfg.Sefaz.CertPath, cfg.Sefaz.CertKeyPath)
	if err != nil {
		log.Fatal().Err(err).Msg("carregar certificado")
	}

	retryCfg := sefaz.RetryConfig{
		MaxAttempts: cfg.Sefaz.MaxAttempts,
		BaseDelay:   cfg.Sefaz.BaseDelay,
		MaxDelay:    cfg.Sefaz.MaxDelay,
		Timeout:     cfg.Sefaz.Timeout,
	}
	uc := appfiscal.NewAuthorizeDocumentUseCase(
		postgres.NewFiscalDocumentRepository(pool),
		sefaz.NewXMLBuilderService(cfg.Sefaz.Environment),
		signer.NewDigitalSignatureService(),
		sefaz.NewClient(cfg.Sefaz.Environment),
		cert,
		retryCfg,
		cfg.Sefaz.UF,
		log.WithComponent("sefaz"),
	)

	result, err := uc.Authorize(ctx, *org, *branch, *docID)
	if err != nil {
		log.Fatal().Err(err).Msg("autorização")
	}
	log.Info().
		Bool("authorized", result.Authorized).
		Int("cstat", result.CStat).
		Str("motivo", result.Message).
		Str("access_key", result.AccessKey).
		Msg("resultado da autorização")
}

func runCancel(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, log *logger.Logger, args []string) {
	fs := flag.NewFlagSet("cancel", flag.ExitOnError)
	org := fs.Int64("org", 0, "organização")
	branch := fs.Int64("branch", 0, "filial")
	docID := fs.String("doc", "", "id do documento autorizado")
	reason := fs.String("reason", "", "justificativa do cancelamento (mínimo 15 caracteres)")
	_ = fs.Parse(args)

	retryCfg := sefaz.RetryConfig{
		MaxAttempts: cfg.Sefaz.MaxAttempts,
		BaseDelay:   cfg.Sefaz.BaseDelay,
		MaxDelay:    cfg.Sefaz.MaxDelay,
		Timeout:     cfg.Sefaz.Timeout,
	}
	uc := appfiscal.NewCancelDocumentUseCase(
		postgres.NewFiscalDocumentRepository(pool),
		sefaz.NewClient(cfg.Sefaz.Environment),
		retryCfg,
		appfiscal.CancelPolicy{Default: cfg.Sefaz.CancelWindow},
		nil,
		log.WithComponent("sefaz"),
	)

	result, err := uc.Cancel(ctx, *org, *branch, *docID, *reason)
	if err != nil {
		log.Fatal().Err(err).Msg("cancelamento")
	}
	log.Info().
		Bool("cancelled", result.Cancelled).
		Int("cstat", result.CStat).
		Str("motivo", result.Message).
		Msg("resultado do cancelamento")
}

func runSped(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, log *logger.Logger, args []string) {
	fs := flag.NewFlagSet("sped", flag.ExitOnError)
	org := fs.Int64("org", 0, "organização")
	branch := fs.Int64("branch", 0, "filial")
	cnpj := fs.String("cnpj", "", "CNPJ da entidade")
	name := fs.String("name", "", "razão social")
	uf := fs.String("uf", "", "sigla da UF")
	from := fs.String("from", "", "início do período (2006-01-02)")
	to := fs.String("to", "", "fim do período (2006-01-02)")
	_ = fs.Parse(args)

	fromDate, err := time.Parse("2006-01-02", *from)
	if err != nil {
		log.Fatal().Err(err).Msg("data inicial inválida")
	}
	toDate, err := time.Parse("2006-01-02", *to)
	if err != nil {
		log.Fatal().Err(err).Msg("data final inválida")
	}

	generator := appsped.NewECDGenerator(postgres.NewLedgerReader(pool), log.WithComponent("sped"))
	doc, err := generator.Generate(ctx, appsped.GenerateInput{
		OrganizationID: *org,
		BranchID:       *branch,
		CompanyName:    *name,
		CNPJ:           *cnpj,
		UF:             *uf,
		From:           fromDate,
		To:             toDate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("geração da ECD")
	}

	raw, err := doc.Bytes()
	if err != nil {
		log.Fatal().Err(err).Msg("codificação ISO-8859-1")
	}

	outPath := filepath.Join(cfg.Sped.OutputDir,
		fmt.Sprintf("ECD_%s_%s.txt", *cnpj, fromDate.Format("200601")))
	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		log.Fatal().Err(err).Msg("gravar arquivo")
	}
	log.Info().
		Str("path", outPath).
		Int("registers", doc.RegisterCount()).
		Msg("arquivo ECD gravado")
}
