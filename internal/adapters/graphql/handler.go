package graphql

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskflow/core/internal/infrastructure/logger"
)

const tracerName = "github.com/taskflow/core/internal/adapters/graphql"

// Request is the standard GraphQL-over-HTTP request body.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler serves the GraphQL endpoint.
type Handler struct {
	schema graphql.Schema
	logger *logger.Logger
}

func NewHandler(schema graphql.Schema, log *logger.Logger) *Handler {
	return &Handler{schema: schema, logger: log.WithComponent("graphql")}
}

// Serve handles POST and GET /graphql. GET only runs queries.
func (h *Handler) Serve(c echo.Context) error {
	var req Request

	switch c.Request().Method {
	case http.MethodGet:
		req.Query = c.QueryParam("query")
		req.OperationName = c.QueryParam("operationName")
		if raw := c.QueryParam("variables"); raw != "" {
			if err := sonic.UnmarshalString(raw, &req.Variables); err != nil {
				return c.JSON(http.StatusBadRequest, errorResult(badInput("variables must be a JSON object")))
			}
		}
	default:
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResult(badInput("invalid request body")))
		}
	}

	if req.Query == "" {
		return c.JSON(http.StatusBadRequest, errorResult(badInput("query must not be empty")))
	}

	opType := operationType(req.Query, req.OperationName)
	if c.Request().Method == http.MethodGet && opType == ast.OperationTypeMutation {
		c.Response().Header().Set("Allow", http.MethodPost)
		return c.JSON(http.StatusMethodNotAllowed, errorResult(badInput("mutations must be sent with POST")))
	}

	result := h.execute(c.Request().Context(), req, opType)
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) execute(ctx context.Context, req Request, opType string) *graphql.Result {
	spanName := "graphql." + opType
	if req.OperationName != "" {
		spanName += " " + req.OperationName
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(
		attribute.String("graphql.operation.type", opType),
		attribute.String("graphql.operation.name", req.OperationName),
	))
	defer span.End()

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})

	if result.HasErrors() {
		span.SetAttributes(attribute.Int("graphql.errors", len(result.Errors)))
		span.SetStatus(codes.Error, result.Errors[0].Message)
		h.logger.Debugw("GraphQL request returned errors", "operation", req.OperationName, "errors", len(result.Errors))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result
}

// operationType reports "query", "mutation" or "subscription" for the
// operation that will run, or "unknown" when the document does not parse.
func operationType(query, operationName string) string {
	doc, err := parser.Parse(parser.ParseParams{Source: query})
	if err != nil {
		return "unknown"
	}

	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName == "" || (op.Name != nil && op.Name.Value == operationName) {
			return op.Operation
		}
	}
	return "unknown"
}

func errorResult(err *Error) map[string]interface{} {
	return map[string]interface{}{
		"errors": []map[string]interface{}{{
			"message":    err.Message,
			"extensions": err.Extensions(),
		}},
	}
}
