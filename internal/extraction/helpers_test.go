package extraction

import (
	"context"

	"github.com/dvloznov/statement-parser/internal/llm"
	"github.com/dvloznov/statement-parser/internal/ocr"
)

// MockGenerator is a test double for llm.Generator.
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, req llm.Request) (string, error)
	Requests     []llm.Request
}

func (m *MockGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.Requests = append(m.Requests, req)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return "", llm.ErrEmptyResponse
}

// MockRecognizer is a test double for ocr.Recognizer.
type MockRecognizer struct {
	RecognizeFunc func(ctx context.Context, img []byte) (ocr.Recognition, error)
}

func (m *MockRecognizer) Recognize(ctx context.Context, img []byte) (ocr.Recognition, error) {
	if m.RecognizeFunc != nil {
		return m.RecognizeFunc(ctx, img)
	}
	return ocr.Recognition{}, nil
}

const statementText = `HDFC Bank Ltd
Statement of Account
Account Holder Name: Test User
Account No: 123456787890
Statement Period: 01/10/2025 to 31/10/2025
Savings Account
Opening Balance: ₹15,000.00
01/10/2025 Salary credit ACME Corp 25,000.00 40,000.00
05/10/2025 ATM withdrawal MG Road 2,000.00 38,000.00
12/10/2025 UPI/grocery store/1234 1,500.00 36,500.00
Closing Balance: ₹36,500.00`
