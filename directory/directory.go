package directory

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/vnkhanh/chat-server/models"
)

// ErrMemberNotFound is returned when an id or email resolves to nothing.
var ErrMemberNotFound = errors.New("member not found")

// SearchLimit bounds the candidate list returned by SearchByName.
const SearchLimit = 20

// MemberDirectory is the identity lookup the chat core consumes. The rest of
// the platform owns the member table; chat only reads it.
type MemberDirectory interface {
	ResolveByID(id uint) (models.Member, error)
	ResolveByEmail(email string) (models.Member, error)
	SearchByName(keyword string) ([]models.Member, error)
}

type gormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) MemberDirectory {
	return &gormDirectory{db: db}
}

func (d *gormDirectory) ResolveByID(id uint) (models.Member, error) {
	var m models.Member
	if err := d.db.First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Member{}, ErrMemberNotFound
		}
		return models.Member{}, err
	}
	return m, nil
}

func (d *gormDirectory) ResolveByEmail(email string) (models.Member, error) {
	var m models.Member
	if err := d.db.Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Member{}, ErrMemberNotFound
		}
		return models.Member{}, err
	}
	return m, nil
}

func (d *gormDirectory) SearchByName(keyword string) ([]models.Member, error) {
	var members []models.Member
	err := d.db.
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(keyword)+"%").
		Order("name asc").
		Limit(SearchLimit).
		Find(&members).Error
	return members, err
}
