package config

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmTypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// --- EnvVarProvider Tests ---

func TestEnvVarProviderResolvesSetKeys(t *testing.T) {
	t.Setenv("TEST_SECRET_A", "value-a")

	p := NewEnvVarProvider()
	got, err := p.GetParametersBatch(context.Background(), []string{"TEST_SECRET_A", "TEST_SECRET_MISSING"})
	if err != nil {
		t.Fatalf("GetParametersBatch() error = %v", err)
	}

	if got["TEST_SECRET_A"] != "value-a" {
		t.Errorf("TEST_SECRET_A = %q", got["TEST_SECRET_A"])
	}
	if _, ok := got["TEST_SECRET_MISSING"]; ok {
		t.Error("missing keys must be omitted, not returned empty")
	}
}

// --- SSMProvider Tests ---

// mockSSM implements ssmClient and records batch sizes.
type mockSSM struct {
	values     map[string]string
	invalid    []string
	err        error
	batchSizes []int
}

func (m *mockSSM) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	m.batchSizes = append(m.batchSizes, len(params.Names))
	if m.err != nil {
		return nil, m.err
	}

	out := &ssm.GetParametersOutput{}
	for _, name := range params.Names {
		if val, ok := m.values[name]; ok {
			out.Parameters = append(out.Parameters, ssmTypes.Parameter{
				Name:  aws.String(name),
				Value: aws.String(val),
			})
		}
	}
	out.InvalidParameters = append(out.InvalidParameters, m.invalid...)
	return out, nil
}

func TestSSMProviderBatchesRequests(t *testing.T) {
	values := make(map[string]string)
	var keys []string
	for i := 0; i < 23; i++ {
		key := fmt.Sprintf("/leasenotify/param-%d", i)
		keys = append(keys, key)
		values[key] = fmt.Sprintf("value-%d", i)
	}

	client := &mockSSM{values: values}
	p := newSSMProviderWithClient("eu-west-2", client)

	got, err := p.GetParametersBatch(context.Background(), keys)
	if err != nil {
		t.Fatalf("GetParametersBatch() error = %v", err)
	}
	if len(got) != 23 {
		t.Errorf("resolved %d values, want 23", len(got))
	}

	wantBatches := []int{10, 10, 3}
	if len(client.batchSizes) != len(wantBatches) {
		t.Fatalf("batch sizes = %v, want %v", client.batchSizes, wantBatches)
	}
	for i, size := range wantBatches {
		if client.batchSizes[i] != size {
			t.Errorf("batch %d size = %d, want %d", i, client.batchSizes[i], size)
		}
	}
}

func TestSSMProviderFailsOnInvalidParameters(t *testing.T) {
	client := &mockSSM{invalid: []string{"/leasenotify/missing"}}
	p := newSSMProviderWithClient("eu-west-2", client)

	_, err := p.GetParametersBatch(context.Background(), []string{"/leasenotify/missing"})
	if err == nil {
		t.Fatal("expected error for invalid parameters")
	}
}

func TestSSMProviderPropagatesAPIError(t *testing.T) {
	client := &mockSSM{err: errors.New("access denied")}
	p := newSSMProviderWithClient("eu-west-2", client)

	_, err := p.GetParametersBatch(context.Background(), []string{"/leasenotify/key"})
	if err == nil {
		t.Fatal("expected API error to propagate")
	}
}

func TestSSMProviderEmptyKeys(t *testing.T) {
	p := newSSMProviderWithClient("eu-west-2", &mockSSM{})

	got, err := p.GetParametersBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetParametersBatch() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}
