package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coursehub-api/internal/dto"
	"github.com/noah-isme/coursehub-api/internal/models"
	appErrors "github.com/noah-isme/coursehub-api/pkg/errors"
)

const catalogCachePattern = "catalog:*"

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, id string, fn func(current *models.Course, usage models.LessonUsage) (*models.Course, error)) (*models.Course, error)
	SetPublished(ctx context.Context, id string, published bool, at time.Time) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// CatalogService owns course authoring and catalog reads.
type CatalogService struct {
	repo      courseRepository
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	// generation is bumped by every write. Reads started under an older
	// generation do not populate the cache.
	cacheMu    sync.RWMutex
	generation uint64
}

// NewCatalogService constructs a CatalogService. cache may be nil.
func NewCatalogService(repo courseRepository, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateCourse writes a new course tree owned by actor.
func (s *CatalogService) CreateCourse(ctx context.Context, actor *models.JWTClaims, req dto.CourseInput) (*models.Course, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course owner is required")
	}
	if err := s.validateInput(req); err != nil {
		return nil, err
	}
	for _, m := range req.Modules {
		if m.ID != "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "module ids are assigned by the server")
		}
		for _, l := range m.Lessons {
			if l.ID != "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "lesson ids are assigned by the server")
			}
		}
	}

	now := s.now()
	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Price:       *req.Price,
		Level:       req.Level,
		Published:   req.Published,
		Instructor:  actor.Instructor(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Modules:     buildModules(req.Modules, nil, now),
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}
	s.invalidate(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", course.Instructor.ID))
	return course, nil
}

// UpdateCourse replaces the editable fields and the module tree of a course.
// Publication and the instructor snapshot are left untouched. Lessons that
// carry learner progress or submissions cannot be removed, and a coding
// lesson in use cannot change type.
func (s *CatalogService) UpdateCourse(ctx context.Context, actor *models.JWTClaims, id string, req dto.CourseInput) (*models.Course, error) {
	if err := s.validateInput(req); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, id, func(current *models.Course, usage models.LessonUsage) (*models.Course, error) {
		if !canManage(actor, current) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor can edit it")
		}
		return mergeCourse(current, usage, req, s.now())
	})
	if err != nil {
		return nil, mapCourseError(err, "failed to update course")
	}
	s.invalidate(ctx)
	s.logger.Info("course updated", zap.String("course_id", id))
	return updated, nil
}

// SetPublished toggles whether new enrollments are accepted.
func (s *CatalogService) SetPublished(ctx context.Context, actor *models.JWTClaims, id string, published bool) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	if !canManage(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course instructor can publish it")
	}
	now := s.now()
	if err := s.repo.SetPublished(ctx, id, published, now); err != nil {
		return nil, mapCourseError(err, "failed to update course publication")
	}
	course.Published = published
	course.UpdatedAt = now
	s.invalidate(ctx)
	s.logger.Info("course publication changed", zap.String("course_id", id), zap.Bool("published", published))
	return course, nil
}

// GetCourse returns the full tree. Drafts are visible to their instructor and
// admins only.
func (s *CatalogService) GetCourse(ctx context.Context, actor *models.JWTClaims, id string) (*models.Course, error) {
	key := "catalog:course:" + id
	var cached models.Course
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	gen := s.cacheGeneration()
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapCourseError(err, "failed to load course")
	}
	if !course.Published {
		if !canManage(actor, course) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return course, nil
	}
	s.cacheSet(ctx, key, course, gen)
	return course, nil
}

// ListCourses returns published courses, or the caller's own courses
// including drafts when mine is requested.
func (s *CatalogService) ListCourses(ctx context.Context, actor *models.JWTClaims, query dto.CourseListQuery) ([]models.Course, *models.Pagination, error) {
	filter := models.CourseFilter{
		Level:         models.CourseLevel(query.Level),
		Search:        query.Search,
		PublishedOnly: true,
		Page:          query.Page,
		PageSize:      query.PageSize,
		SortBy:        query.SortBy,
		SortOrder:     query.SortOrder,
	}
	if filter.Level != "" && !filter.Level.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown course level")
	}
	if query.Mine {
		if actor == nil {
			return nil, nil, appErrors.ErrUnauthorized
		}
		filter.PublishedOnly = false
		filter.InstructorID = actor.UserID
	}
	page, size := pageBounds(filter.Page, filter.PageSize)

	type listing struct {
		Items []models.Course `json:"items"`
		Total int             `json:"total"`
	}
	key := fmt.Sprintf("catalog:list:%s:%s:%d:%d:%s:%s", filter.Level, filter.Search, page, size, filter.SortBy, filter.SortOrder)
	var cached listing
	if filter.PublishedOnly && s.cacheGet(ctx, key, &cached) {
		return cached.Items, &models.Pagination{Page: page, PageSize: size, TotalCount: cached.Total}, nil
	}

	gen := s.cacheGeneration()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	if filter.PublishedOnly {
		s.cacheSet(ctx, key, listing{Items: items, Total: total}, gen)
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *CatalogService) validateInput(req dto.CourseInput) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid course payload")
	}
	moduleOrders := make([]int, len(req.Modules))
	seen := make(map[string]bool)
	for i, m := range req.Modules {
		moduleOrders[i] = m.Order
		if m.ID != "" {
			if seen[m.ID] {
				return appErrors.Clone(appErrors.ErrValidation, "duplicate module id "+m.ID)
			}
			seen[m.ID] = true
		}
		lessonOrders := make([]int, len(m.Lessons))
		for j, l := range m.Lessons {
			lessonOrders[j] = l.Order
			if !l.Type.Valid() {
				return appErrors.Clone(appErrors.ErrValidation, "unknown lesson type")
			}
			if l.ID != "" {
				if seen[l.ID] {
					return appErrors.Clone(appErrors.ErrValidation, "duplicate lesson id "+l.ID)
				}
				seen[l.ID] = true
			}
		}
		if err := checkOrderKeys(lessonOrders); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("module %q: lesson %s", m.Title, err))
		}
	}
	if err := checkOrderKeys(moduleOrders); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "module "+err.Error())
	}
	if !req.Level.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown course level")
	}
	return nil
}

// checkOrderKeys requires orders to be a permutation of 1..n.
func checkOrderKeys(orders []int) error {
	sorted := append([]int(nil), orders...)
	sort.Ints(sorted)
	for i, o := range sorted {
		if o != i+1 {
			return fmt.Errorf("order keys must be unique and run from 1 to %d", len(orders))
		}
	}
	return nil
}

func buildModules(inputs []dto.ModuleInput, existing map[string]models.Lesson, now time.Time) []models.Module {
	modules := make([]models.Module, 0, len(inputs))
	for _, in := range inputs {
		m := models.Module{ID: in.ID, Title: in.Title, Order: in.Order, Lessons: make([]models.Lesson, 0, len(in.Lessons))}
		for _, li := range in.Lessons {
			l := models.Lesson{ID: li.ID, ModuleID: in.ID, Title: li.Title, Type: li.Type, Content: li.Content, Order: li.Order, CreatedAt: now}
			if prev, ok := existing[li.ID]; ok {
				l.CreatedAt = prev.CreatedAt
			}
			m.Lessons = append(m.Lessons, l)
		}
		sort.SliceStable(m.Lessons, func(i, j int) bool { return m.Lessons[i].Order < m.Lessons[j].Order })
		modules = append(modules, m)
	}
	sort.SliceStable(modules, func(i, j int) bool { return modules[i].Order < modules[j].Order })
	return modules
}

func mergeCourse(current *models.Course, usage models.LessonUsage, req dto.CourseInput, now time.Time) (*models.Course, error) {
	knownModules := make(map[string]bool, len(current.Modules))
	knownLessons := make(map[string]models.Lesson)
	for _, m := range current.Modules {
		knownModules[m.ID] = true
		for _, l := range m.Lessons {
			knownLessons[l.ID] = l
		}
	}

	kept := make(map[string]bool)
	for _, m := range req.Modules {
		if m.ID != "" && !knownModules[m.ID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "module "+m.ID+" does not belong to this course")
		}
		for _, l := range m.Lessons {
			if l.ID == "" {
				continue
			}
			prev, ok := knownLessons[l.ID]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, "lesson "+l.ID+" does not belong to this course")
			}
			if usage[l.ID] && prev.Type == models.LessonTypeCoding && l.Type != models.LessonTypeCoding {
				return nil, appErrors.Clone(appErrors.ErrValidation, "lesson "+l.ID+" has submissions or progress and must stay a coding lesson")
			}
			kept[l.ID] = true
		}
	}
	for id := range knownLessons {
		if usage[id] && !kept[id] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lesson "+id+" has learner activity and cannot be removed")
		}
	}

	next := *current
	next.Title = req.Title
	next.Description = req.Description
	next.Price = *req.Price
	next.Level = req.Level
	next.UpdatedAt = now
	next.Modules = buildModules(req.Modules, knownLessons, now)
	return &next, nil
}

func canManage(actor *models.JWTClaims, course *models.Course) bool {
	if actor == nil {
		return false
	}
	return actor.Role == models.RoleAdmin || actor.UserID == course.Instructor.ID
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Debug("catalog cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *CatalogService) cacheGeneration() uint64 {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.generation
}

// cacheSet stores value unless a write happened since gen was read.
func (s *CatalogService) cacheSet(ctx context.Context, key string, value interface{}, gen uint64) {
	if s.cache == nil {
		return
	}
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if s.generation != gen {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Debug("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CatalogService) invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
