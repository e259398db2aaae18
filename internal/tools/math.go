package tools

import (
	"context"

	"github.com/kernelworks/kernelbot/internal/domain"
)

type binaryArgs struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func binarySchema(xDesc, yDesc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "number", "description": xDesc},
			"y": map[string]any{"type": "number", "description": yDesc},
		},
		"required": []string{"x", "y"},
	}
}

// NewAddTool adds two numbers
func NewAddTool() Tool {
	return NewTyped("Add", "Add two numbers, such as 6+3",
		binarySchema("First operand", "Second operand"),
		func(ctx context.Context, args binaryArgs) (any, error) {
			return args.X + args.Y, nil
		})
}

// NewSubtractTool subtracts two numbers
func NewSubtractTool() Tool {
	return NewTyped("Subtract", "Subtract two numbers, such as 6-3",
		binarySchema("Minuend", "Subtrahend"),
		func(ctx context.Context, args binaryArgs) (any, error) {
			return args.X - args.Y, nil
		})
}

// NewMultiplyTool multiplies two numbers
func NewMultiplyTool() Tool {
	return NewTyped("Multiply", "Multiply two numbers, such as 6*3",
		binarySchema("First factor", "Second factor"),
		func(ctx context.Context, args binaryArgs) (any, error) {
			return args.X * args.Y, nil
		})
}

// NewDivideTool divides two numbers
func NewDivideTool() Tool {
	return NewTyped("Divide", "Divide two numbers, such as 6/3",
		binarySchema("Dividend", "Divisor"),
		func(ctx context.Context, args binaryArgs) (any, error) {
			if args.Y == 0 {
				return nil, domain.ErrDivideByZero
			}
			return args.X / args.Y, nil
		})
}
