// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAITools returns the catalog as OpenAI function definitions, for
// agents that speak the chat completions tool-calling format.
func (c *Catalog) OpenAITools() []openai.Tool {
	defs := make([]openai.Tool, 0, len(c.order))
	for _, op := range c.Operations() {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        op.Name,
				Description: op.Description,
				Parameters:  JSONSchema(op.Fields),
			},
		})
	}
	return defs
}

// ParseOpenAIToolCall extracts the operation name and raw arguments from a
// tool call emitted by an OpenAI-compatible model.
func ParseOpenAIToolCall(call openai.ToolCall) (string, map[string]any, error) {
	if call.Type != "" && call.Type != openai.ToolTypeFunction {
		return "", nil, invalidArgument("unsupported tool call type %q", call.Type)
	}
	name := call.Function.Name
	if name == "" {
		return "", nil, invalidArgument("tool call missing function name")
	}
	args, err := ParseArguments(call.Function.Arguments)
	if err != nil {
		return name, nil, fmt.Errorf("tool call %s: %w", name, err)
	}
	return name, args, nil
}
