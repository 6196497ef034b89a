package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/eyerest/eyerest_backend/internal/gamification"
	"github.com/eyerest/eyerest_backend/internal/middleware"
	"github.com/eyerest/eyerest_backend/internal/models"
)

type GamificationController struct {
	DB      *gorm.DB
	Rewards *gamification.Service
}

func (g *GamificationController) Summary(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	summary, err := g.Rewards.GetSummary(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListBadges returns every active badge with the user's earned state.
func (g *GamificationController) ListBadges(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var badges []models.Badge
	if err := g.DB.Where("is_active = ?", true).Order("id").Find(&badges).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var earned []models.UserBadge
	g.DB.Where("user_id_ref = ?", user.ID).Find(&earned)
	earnedAt := map[uint]time.Time{}
	for _, ub := range earned {
		earnedAt[ub.BadgeIDRef] = ub.EarnedAt
	}

	out := make([]gin.H, 0, len(badges))
	for _, b := range badges {
		item := gin.H{
			"slug":        b.Slug,
			"name":        b.Name,
			"description": b.Description,
			"icon":        b.Icon,
			"rarity":      b.Rarity,
			"xp_reward":   b.ExperienceReward,
			"earned":      false,
		}
		if at, ok := earnedAt[b.ID]; ok {
			item["earned"] = true
			item["earned_at"] = at
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"badges": out, "earned_count": len(earned)})
}

// ListChallenges returns running challenges with the user's progress.
func (g *GamificationController) ListChallenges(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	var challenges []models.Challenge
	if err := g.DB.Where("is_active = ? AND starts_at <= ? AND ends_at > ?", true, now, now).
		Order("ends_at").Find(&challenges).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(challenges))
	for _, ch := range challenges {
		var part models.ChallengeParticipation
		joined := g.DB.Where("user_id_ref = ? AND challenge_id_ref = ?", user.ID, ch.ID).
			First(&part).Error == nil

		item := gin.H{
			"challenge_id": ch.ID,
			"type":         ch.ChallengeType,
			"name":         ch.Name,
			"description":  ch.Description,
			"target_value": ch.TargetValue,
			"xp_reward":    ch.ExperienceReward,
			"ends_at":      ch.EndsAt,
			"joined":       joined,
		}
		if joined {
			item["progress"] = part.CurrentProgress
			item["completed"] = part.Completed
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"challenges": out})
}

func (g *GamificationController) JoinChallenge(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	now := time.Now().UTC()

	var ch models.Challenge
	if err := g.DB.Where("id = ? AND is_active = ? AND ends_at > ?", c.Param("id"), true, now).
		First(&ch).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "challenge not found"})
		return
	}

	part := models.ChallengeParticipation{UserIDRef: user.ID, ChallengeIDRef: ch.ID}
	if err := g.DB.Where(models.ChallengeParticipation{
		UserIDRef:      user.ID,
		ChallengeIDRef: ch.ID,
	}).FirstOrCreate(&part).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "joined", "challenge_id": ch.ID})
}

func (g *GamificationController) ListAchievements(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var achievements []models.Achievement
	if err := g.DB.Where("user_id_ref = ?", user.ID).
		Order("earned_at DESC").Find(&achievements).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": achievements})
}

// Leaderboard ranks premium users by total experience.
func (g *GamificationController) Leaderboard(c *gin.Context) {
	type row struct {
		UserIDRef             uint
		CurrentLevel          uint
		TotalExperiencePoints uint
	}
	var rows []row
	if err := g.DB.Model(&models.UserLevel{}).
		Order("total_experience_points DESC").Limit(10).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for rank, r := range rows {
		var u models.User
		if err := g.DB.First(&u, r.UserIDRef).Error; err != nil {
			continue
		}
		out = append(out, gin.H{
			"rank":       rank + 1,
			"name":       u.FullName(),
			"level":      r.CurrentLevel,
			"experience": r.TotalExperiencePoints,
		})
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": out})
}
