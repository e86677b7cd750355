package history

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestConversation(t *testing.T) {
	c := New("find posts about AI")
	c.AppendCall(FunctionCall{ID: "call_1", Name: "searchBlog", Arguments: `{"query":"AI"}`})
	if err := c.AppendResult("searchBlog", "https://a,https://b"); err != nil {
		t.Fatal(err)
	}
	c.AppendAnswer("done")

	want := []Message{
		{Role: RoleUser, Content: "find posts about AI"},
		{Role: RoleAssistant, Call: &FunctionCall{ID: "call_1", Name: "searchBlog", Arguments: `{"query":"AI"}`}},
		{Role: RoleFunction, Name: "searchBlog", Content: "https://a,https://b"},
		{Role: RoleAssistant, Content: "done"},
	}
	got := c.Messages()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 4 {
		t.Errorf("Len() = %d", c.Len())
	}
	if id := CallIDFor(got, 2); id != "call_1" {
		t.Errorf("CallIDFor = %q", id)
	}
	if id := CallIDFor(got, 3); id != "" {
		t.Errorf("CallIDFor on an answer = %q", id)
	}
}

func TestMessagesIsACopy(t *testing.T) {
	c := New("q")
	c.AppendCall(FunctionCall{Name: "searchBlog"})
	msgs := c.Messages()
	msgs[1].Call.Name = "changed"
	msgs[0].Content = "changed"
	if got := c.Messages(); got[1].Call.Name != "searchBlog" || got[0].Content != "q" {
		t.Errorf("conversation was modified through Messages(): %+v", got)
	}
}

func TestAppendResultRequiresMatchingCall(t *testing.T) {
	c := New("q")
	if err := c.AppendResult("searchBlog", "x"); !errors.Is(err, ErrNameMismatch) {
		t.Errorf("result without a call: got %v", err)
	}
	c.AppendCall(FunctionCall{Name: "searchBlog"})
	if err := c.AppendResult("getBlogContents", "x"); !errors.Is(err, ErrNameMismatch) {
		t.Errorf("result with another name: got %v", err)
	}
	if err := c.AppendResult("searchBlog", "x"); err != nil {
		t.Fatal(err)
	}
	if err := c.AppendResult("searchBlog", "again"); !errors.Is(err, ErrNameMismatch) {
		t.Errorf("second result for one call: got %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}
