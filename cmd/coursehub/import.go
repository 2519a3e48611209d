package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	"github.com/noah-isme/coursehub-api/internal/service"
)

func newImportCommand() *cobra.Command {
	var instructor models.JWTClaims
	cmd := &cobra.Command{
		Use:   "import-course <file.yaml>",
		Short: "Create courses from a YAML file, one course per document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync() //nolint:errcheck

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			inputs, err := decodeCourses(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			stores, closeStores, err := a.openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStores()

			instructor.Role = models.RoleInstructor
			catalog := service.NewCatalogService(stores.Courses, nil, 0, validator.New(), a.logger)
			return importCourses(cmd.Context(), catalog, &instructor, inputs, cmd.OutOrStdout(), a.logger)
		},
	}
	cmd.Flags().StringVar(&instructor.UserID, "instructor-id", "", "owning instructor user id")
	cmd.Flags().StringVar(&instructor.FullName, "instructor-name", "", "owning instructor display name")
	cmd.Flags().StringVar(&instructor.Email, "instructor-email", "", "owning instructor email")
	_ = cmd.MarkFlagRequired("instructor-id")
	return cmd
}

// decodeCourses reads every YAML document in r.
func decodeCourses(r io.Reader) ([]dto.CourseInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []dto.CourseInput
	for {
		var in dto.CourseInput
		err := dec.Decode(&in)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", len(out)+1, err)
		}
		out = append(out, in)
	}
	if len(out) == 0 {
		return nil, errors.New("no course documents found")
	}
	return out, nil
}

type courseCreator interface {
	CreateCourse(ctx context.Context, actor *models.JWTClaims, req dto.CourseInput) (*models.Course, error)
}

// importCourses stops at the first rejected document; earlier courses stay
// created.
func importCourses(ctx context.Context, catalog courseCreator, actor *models.JWTClaims, inputs []dto.CourseInput, out io.Writer, logger *zap.Logger) error {
	for i, in := range inputs {
		course, err := catalog.CreateCourse(ctx, actor, in)
		if err != nil {
			return fmt.Errorf("course %d (%q): %w", i+1, in.Title, err)
		}
		logger.Info("course imported", zap.String("course_id", course.ID), zap.Int("lessons", len(course.LessonIDs())))
		fmt.Fprintf(out, "%s\t%s\n", course.ID, course.Title)
	}
	return nil
}
