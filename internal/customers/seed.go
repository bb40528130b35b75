package customers

import (
	"context"
	"fmt"

	"docchaser/internal/shared/telemetry"
)

// SampleDirectory is the demo directory loaded by the seed command.
var SampleDirectory = []CreateInput{
	{Email: "bart.kratochvil@hotmail.com", Name: "Bart Kratochvil", Phone: "+1 (555) 100-0001", Company: "Synativ", Notes: "Primary contact"},
	{Email: "john.smith@techcorp.com", Name: "John Smith", Phone: "+1 (555) 200-0001", Company: "TechCorp Industries", Notes: "Finance team lead"},
	{Email: "sarah.johnson@innovate.io", Name: "Sarah Johnson", Phone: "+1 (555) 200-0002", Company: "Innovate Solutions", Notes: "CEO"},
	{Email: "michael.chen@greenfield.com", Name: "Michael Chen", Phone: "+1 (555) 200-0003", Company: "Greenfield Enterprises", Notes: "Accounting manager"},
	{Email: "emma.williams@nexus.co", Name: "Emma Williams", Phone: "+1 (555) 200-0004", Company: "Nexus Partners", Notes: "CFO"},
	{Email: "james.rodriguez@summit.com", Name: "James Rodriguez", Phone: "+1 (555) 200-0005", Company: "Summit Financial", Notes: "Tax department"},
	{Email: "olivia.taylor@brightside.io", Name: "Olivia Taylor", Phone: "+1 (555) 200-0006", Company: "Brightside Consulting", Notes: "Operations director"},
	{Email: "david.lee@quantum.tech", Name: "David Lee", Phone: "+1 (555) 200-0007", Company: "Quantum Technologies", Notes: "Compliance officer"},
	{Email: "sophia.martinez@apex.com", Name: "Sophia Martinez", Phone: "+1 (555) 200-0008", Company: "Apex Corporation", Notes: "Finance assistant"},
	{Email: "robert.brown@velocity.co", Name: "Robert Brown", Phone: "+1 (555) 200-0009", Company: "Velocity Ventures", Notes: "Business owner"},
	{Email: "lisa.anderson@zenith.com", Name: "Lisa Anderson", Phone: "+1 (555) 200-0010", Company: "Zenith Group", Notes: "Controller"},
}

// Seed upserts entries into the directory and returns the number stored.
// Existing customers are left untouched.
func Seed(ctx context.Context, svc *Service, entries []CreateInput) (int, error) {
	for i, in := range entries {
		c, err := svc.Upsert(ctx, in)
		if err != nil {
			return i, fmt.Errorf("seed %s: %w", in.Email, err)
		}
		telemetry.Info("customers.seeded", map[string]any{"customer_id": c.ID, "email": c.Email})
	}
	return len(entries), nil
}
