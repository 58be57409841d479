package market

import "context"

// SeedDemo loads the demo owner/tenant pair and a handful of listings so a
// fresh in-memory deployment is immediately usable. It is a no-op when the
// demo owner already exists.
func SeedDemo(ctx context.Context, svc *Service) error {
	if _, err := svc.Store().GetUserByEmail(ctx, "owner@rentchain.org"); err == nil {
		return nil
	}

	owner, err := svc.RegisterUser(ctx, RegisterParams{
		Role:     RoleOwner,
		Name:     "John Owner",
		Email:    "owner@rentchain.org",
		Password: "owner123",
	})
	if err != nil {
		return err
	}
	if _, err := svc.RegisterUser(ctx, RegisterParams{
		Role:     RoleTenant,
		Name:     "Jane Tenant",
		Email:    "tenant@rentchain.org",
		Password: "tenant123",
	}); err != nil {
		return err
	}

	listings := []CreatePropertyParams{
		{
			Title:       "Modern 2BR Apartment in Downtown",
			Description: "Modern apartment with city views, hardwood floors and an updated kitchen. Close to shopping, dining and transit.",
			Images:      []string{"https://images.rentchain.org/demo/downtown-2br-1.jpg", "https://images.rentchain.org/demo/downtown-2br-2.jpg"},
			Price:       1800,
			Location:    "Downtown, New York",
			Bedrooms:    2,
			Bathrooms:   1,
		},
		{
			Title:       "Cozy Studio Apartment",
			Description: "Recently renovated studio in a quiet neighborhood. Utilities and high-speed internet included.",
			Images:      []string{"https://images.rentchain.org/demo/studio-1.jpg"},
			Price:       950,
			Location:    "Brooklyn, New York",
			Bedrooms:    0,
			Bathrooms:   1,
		},
		{
			Title:       "Luxury 3BR Condo with Amenities",
			Description: "Floor-to-ceiling windows, gourmet kitchen and building gym, pool and rooftop terrace.",
			Images:      []string{"https://images.rentchain.org/demo/condo-1.jpg", "https://images.rentchain.org/demo/condo-2.jpg"},
			Price:       3200,
			Location:    "Manhattan, New York",
			Bedrooms:    3,
			Bathrooms:   2,
		},
		{
			Title:       "Spacious 4BR Family Home",
			Description: "Large backyard, two-car garage, home office and finished basement in a family-friendly neighborhood.",
			Images:      []string{"https://images.rentchain.org/demo/family-1.jpg", "https://images.rentchain.org/demo/family-2.jpg"},
			Price:       2800,
			Location:    "Queens, New York",
			Bedrooms:    4,
			Bathrooms:   2.5,
		},
		{
			Title:       "Penthouse Suite with Panoramic Views",
			Description: "Private elevator access, chef's kitchen and an expansive terrace with panoramic city views.",
			Images:      []string{"https://images.rentchain.org/demo/penthouse-1.jpg", "https://images.rentchain.org/demo/penthouse-2.jpg"},
			Price:       5500,
			Location:    "Manhattan, New York",
			Bedrooms:    3,
			Bathrooms:   3,
		},
		{
			Title:       "Affordable 1BR Apartment",
			Description: "Well-maintained one-bedroom close to transit. Pet-friendly building with on-site laundry.",
			Images:      []string{"https://images.rentchain.org/demo/1br-1.jpg"},
			Price:       1200,
			Location:    "Bronx, New York",
			Bedrooms:    1,
			Bathrooms:   1,
		},
	}
	for _, l := range listings {
		l.OwnerID = owner.ID
		if _, err := svc.CreateProperty(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
