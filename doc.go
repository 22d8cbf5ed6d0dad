/*
Package lectern runs guided lessons: courses made of chapters and lessons, each lesson a
sequence of blocks that print text, stream model output, or wait for the learner to answer.

The engine is turn based. A turn takes one request (who, which course, and optionally an
answer to the block the learner is looking at) and emits a stream of frames: text typed out
character by character, buttons and input prompts, and progress notifications. Progress,
branch detours, variables and the output log live in a transactional store, so a turn that
is retried or replayed after a reconnect never answers twice and never skips ahead.

# Usage

Courses are YAML documents in a directory, one file per course:

	eng, err := lectern.New("./courses")
	if err != nil {
		log.Fatal(err)
	}
	err = eng.Turn(ctx, domain.Request{UserID: "u1", CourseID: "intro"}, func(f domain.Frame) error {
		fmt.Println(f.Type, f.Content)
		return nil
	})

For a terminal session, hand the engine to a runner:

	err = eng.Play(ctx, runner.WithUser("u1"), runner.WithCourse("intro"))

# Adapters

The default store keeps everything in memory. Package pkg/adapters/sqlite persists it, package
pkg/adapters/redis serializes turns across instances and keeps verification codes, and
package pkg/adapters/http serves turns as server-sent events.
*/
package lectern
