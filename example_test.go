package toolbox_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/toolbox"
	"github.com/aretw0/toolbox/pkg/domain"
)

// ExampleNew writes a file into a caller's sandbox and reads it back.
func ExampleNew() {
	root, err := os.MkdirTemp("", "toolbox-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(root)

	tb := toolbox.New(toolbox.WithOutputRoot(root))
	defer tb.Close()

	ctx := context.Background()
	tc := domain.ToolContext{UserID: "42", DisplayName: "ada", ChannelID: "general"}

	if _, err := tb.Dispatch(ctx, "file_write", map[string]any{"path": "notes.txt", "content": "hello"}, tc); err != nil {
		log.Fatal(err)
	}
	res, err := tb.Dispatch(ctx, "file_read", map[string]any{"path": "notes.txt"}, tc)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Output)

	_, err = tb.Dispatch(ctx, "does_not_exist", nil, tc)
	kind, _ := domain.KindOf(err)
	fmt.Println(kind)

	// Output:
	// hello
	// not_found
}
