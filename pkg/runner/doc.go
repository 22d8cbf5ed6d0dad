/*
Package runner drives a course from a terminal or a pipe.

The runner plays one turn at a time, hands every frame to an IOHandler, and turns the
handler's answer to the last prompt into the next request. Handlers decide the presentation:
TextHandler renders markdown for people, JSONHandler speaks newline-delimited JSON for
programs.

# Usage

	r := runner.NewRunner(
		runner.WithUser("u1"),
		runner.WithCourse("intro"),
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx, engine); err != nil {
		log.Fatal(err)
	}
*/
package runner
