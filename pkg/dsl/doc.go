/*
Package dsl provides a fluent Go builder for courses.

It is an alternative to YAML course files when content is generated in code, and it keeps
tests short. Chapters and lessons are ordered by insertion, and every block call appends the
next block of the current lesson.

Example usage:

	c := dsl.NewCourse("intro").Title("Introduction")
	c.Chapter("basics", "Basics").
		Lesson("hello", "Hello").
		Ask("Your name?", "name").
		Continue("Nice to meet you, {name}!")

	loader, err := c.Loader()
	if err != nil {
		return err
	}
	engine, err := lectern.New("", lectern.WithLoader(loader))
*/
package dsl
