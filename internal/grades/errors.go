package grades

import (
	"errors"

	"github.com/mind-engage/mindengage-grades/internal/course"
)

// ErrCourseNotFound is returned by IterGrades and CreateForCourse when the
// tree provider does not know the course id. It aliases the provider's
// sentinel so errors.Is matches either package.
var ErrCourseNotFound = course.ErrNotFound

// ErrUnknownBlock is returned when a grade is queried for a block id that
// is not part of the course structure the grade was computed against.
var ErrUnknownBlock = errors.New("unknown block")
