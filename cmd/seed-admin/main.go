// seed-admin provisions a demo tenant with an admin user and one
// procurement loop so a fresh environment can be exercised end to end.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ardaops/kanban_backend/config"
	"github.com/ardaops/kanban_backend/models"
	"github.com/ardaops/kanban_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	adminUsername = "kanbanAdmin"
	adminPassword = "K@nbanAdmin1"
	adminName     = "Kanban Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var biz models.Business
	err := db.WithContext(ctx).Model(&models.Business{}).Select("id").First(&biz).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
			os.Exit(1)
		}
		seedCtx := utils.SetSkipTenantScopeInContext(ctx, true)
		created, cerr := models.CreateBusiness(seedCtx, &models.NewBusiness{
			Name:     "Demo Manufacturing",
			Timezone: "UTC",
		})
		if cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", cerr)
			os.Exit(1)
		}
		biz = *created
		fmt.Printf("Created business: id=%s name=%q\n", biz.ID, created.Name)
	}

	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		if _, err := models.CreateUser(ctx, businessID, &models.NewUser{
			Username: adminUsername,
			Name:     adminName,
			Password: adminPassword,
			Role:     models.RoleAdmin,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
	} else {
		hashed, herr := utils.HashPassword(adminPassword)
		if herr != nil {
			fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", herr)
			os.Exit(1)
		}
		hashedStr := string(hashed)
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
			"password":    hashedStr,
			"name":        adminName,
			"is_active":   utils.NewTrue(),
			"business_id": businessID,
			"role":        models.RoleAdmin,
		}).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated admin user: username=%q\n", adminUsername)
	}

	var loopCount int64
	if err := db.WithContext(ctx).Model(&models.KanbanLoop{}).Where("business_id = ?", businessID).Count(&loopCount).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to count loops: %v\n", err)
		os.Exit(1)
	}
	if loopCount == 0 {
		supplier := 1
		loop, err := models.CreateKanbanLoop(ctx, &models.NewKanbanLoop{
			PartId:        1001,
			PartName:      "M8 hex bolt",
			LoopType:      models.LoopTypeProcurement,
			CardMode:      models.CardModeMulti,
			OrderQuantity: decimal.NewFromInt(500),
			NumberOfCards: 3,
			FacilityId:    1,
			SupplierId:    &supplier,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create demo loop: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created demo procurement loop: id=%d cards=%d\n", loop.ID, loop.NumberOfCards)
	}
}
