package ocr

import (
	"context"
	"errors"
	"io"
	"testing"

	"docqa-go/pkg/textract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextractExtractor(t *testing.T) {
	client := &fakeTextract{get: func(call int, _, token string) (*textract.Page, error) {
		if call == 1 {
			return &textract.Page{JobStatus: textract.StatusRunning}, nil
		}
		return &textract.Page{JobStatus: textract.StatusSucceeded, Blocks: nameAgeBlocks()}, nil
	}}
	sl := &recordingSleeper{}
	ex := NewTextractExtractor(newTestRunner(client, sl), []textract.Feature{textract.FeatureTables})

	doc, err := ex.Extract(context.Background(), Source{Fingerprint: "fp", Bucket: "b", Key: "docs/fp.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 1, client.starts)
	assert.Equal(t, []textract.Feature{textract.FeatureTables}, client.features)
	assert.Equal(t, [][]string{{"Name", "Age"}, {"Alice", ""}}, doc.Tables[0].Rows)
	assert.Len(t, sl.sleeps, 1)
}

func TestTextractExtractorPropagatesJobFailure(t *testing.T) {
	client := &fakeTextract{get: statusSequence(textract.StatusFailed)}
	ex := NewTextractExtractor(newTestRunner(client, &recordingSleeper{}), nil)

	_, err := ex.Extract(context.Background(), Source{Fingerprint: "fp", Bucket: "b", Key: "k"})
	var failed *JobFailedError
	assert.ErrorAs(t, err, &failed)
}

type fakeTika struct {
	text string
	err  error
	got  string
}

func (f *fakeTika) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	b, _ := io.ReadAll(r)
	f.got = string(b)
	return f.text, f.err
}

func TestTikaExtractor(t *testing.T) {
	client := &fakeTika{text: "plain text"}
	doc, err := NewTikaExtractor(client).Extract(context.Background(), Source{Fingerprint: "fp", FileName: "a.pdf", Data: []byte("raw")})
	require.NoError(t, err)
	assert.Equal(t, "raw", client.got)
	assert.Equal(t, "plain text", doc.Text)
	assert.Empty(t, doc.Tables)
	assert.NotNil(t, doc.Tables)
}

func TestTikaExtractorErrors(t *testing.T) {
	_, err := NewTikaExtractor(&fakeTika{err: errors.New("down")}).Extract(context.Background(), Source{})
	var transient *TransientServiceError
	assert.ErrorAs(t, err, &transient)

	_, err = NewTikaExtractor(&fakeTika{text: "   "}).Extract(context.Background(), Source{FileName: "blank.pdf"})
	assert.Error(t, err)
}
