package llm_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/tmc/langchaingo/llms"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/adapters/llm"
)

type fakeModel struct {
	reply    *llms.ContentResponse
	err      error
	messages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = msgs
	return f.reply, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func TestComplete(t *testing.T) {
	Convey("Given a completer over a fake model", t, func() {
		ctx := context.Background()

		Convey("When the model replies", func() {
			m := &fakeModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "  {\"action\":\"results\"}\n"}}}}
			out, err := llm.New(m).Complete(ctx, "parse this", "results 2023")

			Convey("Then the trimmed content is returned and both parts were sent", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, `{"action":"results"}`)
				So(len(m.messages), ShouldEqual, 2)
				So(m.messages[0].Role, ShouldEqual, llms.ChatMessageTypeSystem)
				So(m.messages[1].Role, ShouldEqual, llms.ChatMessageTypeHuman)
			})
		})

		Convey("When the model returns no choices", func() {
			_, err := llm.New(&fakeModel{reply: &llms.ContentResponse{}}).Complete(ctx, "i", "q")
			So(errors.Is(err, llm.ErrEmptyCompletion), ShouldBeTrue)
		})

		Convey("When the model fails", func() {
			_, err := llm.New(&fakeModel{err: errors.New("boom")}).Complete(ctx, "i", "q")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "boom")
		})
	})
}
