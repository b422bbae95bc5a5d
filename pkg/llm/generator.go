package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alesierraalta/SQLAgent/pkg/prompts"
)

const (
	generationTemperature = 0.0
	correctionTemperature = 0.1
)

// SQLGenerator turns questions into SQL and repairs failed statements
// using an LLMClient.
type SQLGenerator struct {
	client LLMClient
	logger *zap.Logger
}

func NewSQLGenerator(client LLMClient, logger *zap.Logger) *SQLGenerator {
	return &SQLGenerator{
		client: client,
		logger: logger.Named("sql-generator"),
	}
}

// GenerateSQL produces a SQL statement answering the question against the
// described schema.
func (g *SQLGenerator) GenerateSQL(ctx context.Context, question, schemaDescription string) (string, error) {
	prompt := prompts.BuildGenerationPrompt(prompts.GenerationContext{
		Question: question,
		Schema:   schemaDescription,
	})

	raw, err := g.client.Complete(ctx, prompt, prompts.GenerationSystemMessage, generationTemperature)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	sqlText := CleanSQL(raw)
	if sqlText == "" {
		return "", fmt.Errorf("model returned no sql")
	}
	g.logger.Debug("Generated SQL", zap.String("sql", sqlText))
	return sqlText, nil
}

// CorrectSQL asks the model to repair a statement that failed with the
// given error. errorType is a classification label used to pick a hint.
func (g *SQLGenerator) CorrectSQL(ctx context.Context, failedSQL, errMsg, errorType, schemaDescription string) (string, error) {
	prompt := prompts.BuildCorrectionPrompt(prompts.CorrectionContext{
		FailedSQL:    failedSQL,
		ErrorMessage: errMsg,
		ErrorType:    errorType,
		Schema:       schemaDescription,
	})

	raw, err := g.client.Complete(ctx, prompt, prompts.CorrectionSystemMessage, correctionTemperature)
	if err != nil {
		return "", fmt.Errorf("correct sql: %w", err)
	}

	sqlText := CleanSQL(raw)
	if sqlText == "" {
		return "", fmt.Errorf("model returned no sql")
	}
	g.logger.Debug("Corrected SQL",
		zap.String("error_type", errorType),
		zap.String("sql", sqlText))
	return sqlText, nil
}
