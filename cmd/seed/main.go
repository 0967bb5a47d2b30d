// Seed loads the sample catalog, default fraud rules, plugin
// configurations and recommendation pairings into the database.

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/openretail-labs/magpie/internal/ageverify"
	"github.com/openretail-labs/magpie/internal/config"
	"github.com/openretail-labs/magpie/internal/domain"
	"github.com/openretail-labs/magpie/internal/fraud"
	"github.com/openretail-labs/magpie/internal/lookup"
	"github.com/openretail-labs/magpie/internal/recommend"
	"github.com/openretail-labs/magpie/internal/repository"
	"github.com/openretail-labs/magpie/internal/timetrack"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	seedProducts(ctx, repo)
	seedFraudRules(ctx, repo)
	seedPluginConfigs(ctx, repo)
	seedRecommendationRules(ctx, repo)

	slog.Info("seeding complete")
}

func seedProducts(ctx context.Context, repo domain.Repository) {
	products := []domain.Product{
		{ProductID: "BURGER", Name: "Cheeseburger", Price: 8.99, Category: "food"},
		{ProductID: "FRIES", Name: "French Fries", Price: 2.99, Category: "food"},
		{ProductID: "COKE", Name: "Coca Cola", Price: 1.99, Category: "beverage"},
		{ProductID: "COFFEE", Name: "Coffee", Price: 3.99, Category: "beverage"},
		{ProductID: "DONUT", Name: "Donut", Price: 1.99, Category: "food"},
		{ProductID: "MUFFIN", Name: "Blueberry Muffin", Price: 2.49, Category: "food"},
		{ProductID: "LAPTOP", Name: "Laptop Computer", Price: 999.99, Category: "electronics"},
		{ProductID: "MOUSE", Name: "Wireless Mouse", Price: 29.99, Category: "electronics"},
		{ProductID: "LAPTOP_BAG", Name: "Laptop Bag", Price: 39.99, Category: "accessories"},
		{ProductID: "PHONE", Name: "Smartphone", Price: 699.99, Category: "electronics"},
		{ProductID: "PHONE_CASE", Name: "Phone Case", Price: 19.99, Category: "accessories"},
		{ProductID: "SCREEN_PROTECTOR", Name: "Screen Protector", Price: 9.99, Category: "accessories"},
		{ProductID: "PIZZA", Name: "Pizza", Price: 12.99, Category: "food"},
		{ProductID: "GARLIC_BREAD", Name: "Garlic Bread", Price: 4.99, Category: "food"},
		{ProductID: "SODA", Name: "Soda", Price: 2.49, Category: "beverage"},
		// Age-restricted products
		{ProductID: "BEER", Name: "Beer", Price: 4.99, Category: "alcohol", AgeRestricted: true, MinimumAge: 21},
		{ProductID: "WINE", Name: "Wine", Price: 12.99, Category: "alcohol", AgeRestricted: true, MinimumAge: 21},
		{ProductID: "CIGARETTES", Name: "Cigarettes", Price: 8.99, Category: "tobacco", AgeRestricted: true, MinimumAge: 18},
		{ProductID: "ENERGY_DRINK", Name: "Energy Drink", Price: 3.99, Category: "beverage", AgeRestricted: true, MinimumAge: 16},
	}

	for i := range products {
		if err := repo.SaveProduct(ctx, &products[i]); err != nil {
			slog.Error("failed to seed product", "product_id", products[i].ProductID, "error", err)
			continue
		}
	}
	slog.Info("seeded products", "count", len(products))
}

func seedFraudRules(ctx context.Context, repo domain.Repository) {
	rules := []domain.FraudRule{
		{
			RuleID:         domain.RuleMultipleTerminals,
			Name:           "Employee on Multiple Terminals",
			Description:    "Detects when employee logs into multiple terminals within time window",
			Severity:       domain.SeverityHigh,
			TimeWindowSecs: 300,
			Threshold:      2,
			Enabled:        true,
		},
		{
			RuleID:         domain.RuleRapidItems,
			Name:           "Rapid Item Addition",
			Description:    "Detects when items are added too quickly to basket",
			Severity:       domain.SeverityMedium,
			TimeWindowSecs: 60,
			Threshold:      10,
			Enabled:        true,
		},
		{
			RuleID:         domain.RuleHighValuePayment,
			Name:           "High Value Payment in Short Session",
			Description:    "Detects high-value payments within short login sessions",
			Severity:       domain.SeverityHigh,
			TimeWindowSecs: 600,
			Threshold:      1000,
			Enabled:        true,
		},
		{
			RuleID:         domain.RuleAnonymousPayment,
			Name:           "Anonymous High-Value Payment",
			Description:    "Detects high-value payments without customer identification",
			Severity:       domain.SeverityMedium,
			TimeWindowSecs: 0,
			Threshold:      500,
			Enabled:        true,
		},
		{
			RuleID:         domain.RuleRapidCheckout,
			Name:           "Rapid Basket Checkout",
			Description:    "Detects baskets completed too quickly after creation",
			Severity:       domain.SeverityLow,
			TimeWindowSecs: 30,
			Threshold:      30,
			Enabled:        true,
		},
	}

	for i := range rules {
		if err := repo.SaveFraudRule(ctx, &rules[i]); err != nil {
			slog.Error("failed to seed fraud rule", "rule_id", rules[i].RuleID, "error", err)
			continue
		}
	}
	slog.Info("seeded fraud rules", "count", len(rules))
}

func seedPluginConfigs(ctx context.Context, repo domain.Repository) {
	configs := []domain.PluginConfig{
		{Name: fraud.PluginName, Enabled: true, Description: "Detects fraudulent activities in POS transactions"},
		{Name: ageverify.PluginName, Enabled: true, Description: "Enforces age verification for restricted products"},
		{Name: lookup.PluginName, Enabled: true, Description: "Fetches customer data from external system and caches locally"},
		{Name: timetrack.PluginName, Enabled: true, Description: "Tracks employee clock-in/clock-out from login events"},
		{Name: recommend.PluginName, Enabled: true, Description: "Recommends additional items based on basket contents"},
	}

	for i := range configs {
		if err := repo.SavePluginConfig(ctx, &configs[i]); err != nil {
			slog.Error("failed to seed plugin config", "plugin", configs[i].Name, "error", err)
			continue
		}
	}
	slog.Info("seeded plugin configs", "count", len(configs))
}

func seedRecommendationRules(ctx context.Context, repo domain.Repository) {
	rules := []domain.RecommendationRule{
		{SourceProductID: "BURGER", RecommendedProductID: "FRIES", RecommendedName: "French Fries", RecommendedPrice: 2.99, Priority: 1, Active: true},
		{SourceProductID: "BURGER", RecommendedProductID: "COKE", RecommendedName: "Coca Cola", RecommendedPrice: 1.99, Priority: 2, Active: true},
		{SourceProductID: "COFFEE", RecommendedProductID: "DONUT", RecommendedName: "Donut", RecommendedPrice: 1.99, Priority: 1, Active: true},
		{SourceProductID: "COFFEE", RecommendedProductID: "MUFFIN", RecommendedName: "Blueberry Muffin", RecommendedPrice: 2.49, Priority: 2, Active: true},
		{SourceProductID: "LAPTOP", RecommendedProductID: "MOUSE", RecommendedName: "Wireless Mouse", RecommendedPrice: 29.99, Priority: 1, Active: true},
		{SourceProductID: "LAPTOP", RecommendedProductID: "LAPTOP_BAG", RecommendedName: "Laptop Bag", RecommendedPrice: 39.99, Priority: 2, Active: true},
		{SourceProductID: "PHONE", RecommendedProductID: "PHONE_CASE", RecommendedName: "Phone Case", RecommendedPrice: 19.99, Priority: 1, Active: true},
		{SourceProductID: "PHONE", RecommendedProductID: "SCREEN_PROTECTOR", RecommendedName: "Screen Protector", RecommendedPrice: 9.99, Priority: 2, Active: true},
		{SourceProductID: "PIZZA", RecommendedProductID: "GARLIC_BREAD", RecommendedName: "Garlic Bread", RecommendedPrice: 4.99, Priority: 1, Active: true},
		{SourceProductID: "PIZZA", RecommendedProductID: "SODA", RecommendedName: "Soda", RecommendedPrice: 2.49, Priority: 2, Active: true},
	}

	for i := range rules {
		if err := repo.SaveRecommendationRule(ctx, &rules[i]); err != nil {
			slog.Error("failed to seed recommendation rule",
				"source", rules[i].SourceProductID,
				"recommended", rules[i].RecommendedProductID,
				"error", err)
			continue
		}
	}
	slog.Info("seeded recommendation rules", "count", len(rules))
}
