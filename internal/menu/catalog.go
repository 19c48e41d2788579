package menu

import (
	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"

	"gorm.io/gorm"
)

// Lookup verilen menü ürünlerini işletme kapsamında okur. Başka işletmenin ürünü
// veya satışta olmayan ürün MENU_ITEM_UNAVAILABLE ile reddedilir.
// db açık bir transaction olabilir.
func Lookup(db *gorm.DB, clientID uint, ids []uint) (map[uint]models.MenuItem, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var items []models.MenuItem
	if err := db.Where("client_id = ? AND id IN ?", clientID, unique).Find(&items).Error; err != nil {
		return nil, apperror.Internal("menü okunamadı", err)
	}

	byID := make(map[uint]models.MenuItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	for _, id := range unique {
		it, ok := byID[id]
		if !ok {
			return nil, apperror.Newf(apperror.CodeMenuItemUnavailable, "Menü ürünü bulunamadı: %d", id)
		}
		if !it.Available {
			return nil, apperror.Newf(apperror.CodeMenuItemUnavailable, "%s şu an mevcut değil", it.Name)
		}
	}
	return byID, nil
}
