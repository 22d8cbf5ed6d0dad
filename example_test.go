package lectern_test

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/dsl"
)

// ExampleNew_memory runs a course defined in code, one turn at a time.
func ExampleNew_memory() {
	course := dsl.NewCourse("hello")
	course.Chapter("ch", "Greetings").
		Lesson("l1", "Hello").
		Ask("Your name?", "name").ID("ask").
		Continue("Hello, {name}!")
	loader, err := course.Loader()
	if err != nil {
		log.Fatal(err)
	}
	eng, err := lectern.New("", lectern.WithLoader(loader))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	turn := func(req domain.Request) {
		var text strings.Builder
		err := eng.Turn(ctx, req, func(f domain.Frame) error {
			switch c := f.Content.(type) {
			case string:
				if f.Type == domain.FrameText {
					text.WriteString(c)
				}
			case domain.InputContent:
				fmt.Println("asks:", c.Label)
			case domain.ButtonsContent:
				fmt.Println(text.String())
				fmt.Println("button:", c.Buttons[0].Label)
			}
			return nil
		})
		if err != nil {
			log.Fatal(err)
		}
	}

	turn(domain.Request{UserID: "u1", CourseID: "hello"})
	turn(domain.Request{UserID: "u1", CourseID: "hello", OutlineItemID: "l1", BlockID: "ask", InputKind: domain.InputText, Input: "Ann"})
	// Output:
	// asks: Your name?
	// Hello, Ann!
	// button: Continue
}
