package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-turns/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PromptJSONSchema asks the model for a JSON object matching the schema of
// output, which must be a pointer to a struct, and decodes the answer into
// it.
func (c *Client) PromptJSONSchema(ctx context.Context, prompt string, systemPrompt string, output any) error {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	outputType := reflect.TypeOf(output)
	if outputType == nil || outputType.Kind() != reflect.Pointer {
		err := fmt.Errorf("output must be a pointer, got %T", output)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	messages := toMessages(systemPrompt, []llms.Turn{llms.UserTurn(prompt)})

	// TODO: Implement a custom reflector that only satisfies the subset of
	// jsonschema used by groq
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.ReflectFromType(outputType.Elem())

	reqBody := schemaRequestBody{
		Model:    c.model,
		Messages: messages,
		ResponseFormat: &chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:   outputType.Elem().Name(),
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", c.model))
	if schemaString, err := schema.MarshalJSON(); err == nil {
		span.SetAttributes(attribute.String("request.schema", string(schemaString)))
	}

	var respBody responseBody
	if err := c.post(ctx, reqBody, &respBody); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(respBody.Choices) == 0 {
		span.SetStatus(codes.Error, llms.ErrEmptyReply.Error())
		return llms.ErrEmptyReply
	}

	content := respBody.Choices[0].Message.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}
	if err := json.Unmarshal([]byte(content), output); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

type schemaRequestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	// Name is used to further identify the schema in the response.
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the generated
	// content.
	Strict bool `json:"strict"`
}
