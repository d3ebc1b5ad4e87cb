// Package quiz owns the survey content, scoring math, and persona catalog.
//
// Scores collapse a ten-question answer set into 0..100 with reverse-scored
// statements flipped through 4-v. Personas resolve either by banded score
// lookup or by an unbiased random draw when no score signal exists.
package quiz
