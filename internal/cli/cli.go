// Package cli implements the interactive console shell: an entry menu for
// login and registration, then a role-specific menu dispatching into the
// service layer. Every action re-derives the actor from the session token,
// so an expired session drops back to the entry menu instead of silently
// keeping its old permissions.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tokopos/internal/auth"
	"tokopos/internal/domain"
	"tokopos/internal/service"
)

type Shell struct {
	in   *bufio.Reader
	out  io.Writer
	auth *auth.Manager
	svc  *service.Service
}

func New(in io.Reader, out io.Writer, authManager *auth.Manager, svc *service.Service) *Shell {
	return &Shell{
		in:   bufio.NewReader(in),
		out:  out,
		auth: authManager,
		svc:  svc,
	}
}

func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "TokoPOS - Inventory & Billing")
	for {
		fmt.Fprintln(s.out, "\n1: Login")
		fmt.Fprintln(s.out, "2: Register")
		fmt.Fprintln(s.out, "X: Exit")
		choice, err := s.readLine("Enter choice: ")
		if err != nil {
			return err
		}

		switch strings.ToUpper(choice) {
		case "1":
			token, role, err := s.login()
			if err != nil {
				fmt.Fprintf(s.out, "Login failed: %v\n", err)
				continue
			}
			fmt.Fprintf(s.out, "Logged in as %s\n", role)
			if err := s.sessionLoop(ctx, token, role); err != nil {
				return err
			}
		case "2":
			s.register()
		case "X":
			fmt.Fprintln(s.out, "Goodbye")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown choice")
		}
	}
}

func (s *Shell) login() (string, string, error) {
	username, err := s.readLine("Username: ")
	if err != nil {
		return "", "", err
	}
	password, err := s.readLine("Password: ")
	if err != nil {
		return "", "", err
	}
	resp, err := s.auth.Login(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", "", err
	}
	return resp.SessionToken, resp.Role, nil
}

func (s *Shell) register() {
	username, err := s.readLine("New username: ")
	if err != nil {
		return
	}
	password, err := s.readLine("New password: ")
	if err != nil {
		return
	}
	account, err := s.auth.Register(domain.RegisterRequest{Username: username, Password: password})
	if err != nil {
		fmt.Fprintf(s.out, "Registration failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Registered %s as %s. Please login.\n", account.Username, account.Role)
}

func (s *Shell) sessionLoop(ctx context.Context, token string, role string) error {
	for {
		// Re-parse the token every round so expiry ends the session.
		actor, err := s.auth.ParseToken(token)
		if err != nil {
			fmt.Fprintln(s.out, "Session expired, please login again")
			return nil
		}
		actorCtx := service.WithActor(ctx, actor)

		var choice string
		if role == domain.RoleAdmin {
			choice, err = s.adminMenu()
		} else {
			choice, err = s.salesmanMenu()
		}
		if err != nil {
			return err
		}
		if strings.EqualFold(choice, "X") {
			fmt.Fprintln(s.out, "Logged out")
			return nil
		}
		s.dispatch(actorCtx, role, choice)
	}
}

func (s *Shell) adminMenu() (string, error) {
	fmt.Fprintln(s.out, "\n--- Admin Menu ---")
	fmt.Fprintln(s.out, "1: List Products")
	fmt.Fprintln(s.out, "2: Add Product")
	fmt.Fprintln(s.out, "3: Update Product")
	fmt.Fprintln(s.out, "4: Delete Product")
	fmt.Fprintln(s.out, "5: Search Products")
	fmt.Fprintln(s.out, "6: Low Stock Products")
	fmt.Fprintln(s.out, "7: Expiring Products")
	fmt.Fprintln(s.out, "8: Adjust Stock")
	fmt.Fprintln(s.out, "9: Daily Sales Report")
	fmt.Fprintln(s.out, "10: Monthly Sales Report")
	fmt.Fprintln(s.out, "11: Daily Purchase Report")
	fmt.Fprintln(s.out, "X: Logout")
	return s.readLine("Enter choice: ")
}

func (s *Shell) salesmanMenu() (string, error) {
	fmt.Fprintln(s.out, "\n--- Salesman Menu ---")
	fmt.Fprintln(s.out, "1: List Products")
	fmt.Fprintln(s.out, "2: Search Products")
	fmt.Fprintln(s.out, "3: Create Bill")
	fmt.Fprintln(s.out, "4: Adjust Stock")
	fmt.Fprintln(s.out, "5: Low Stock Products")
	fmt.Fprintln(s.out, "6: Expiring Products")
	fmt.Fprintln(s.out, "7: Daily Sales Report")
	fmt.Fprintln(s.out, "8: Monthly Sales Report")
	fmt.Fprintln(s.out, "9: Daily Purchase Report")
	fmt.Fprintln(s.out, "X: Logout")
	return s.readLine("Enter choice: ")
}

func (s *Shell) dispatch(ctx context.Context, role string, choice string) {
	if role == domain.RoleAdmin {
		switch choice {
		case "1":
			s.listProducts(ctx)
		case "2":
			s.addProduct(ctx)
		case "3":
			s.updateProduct(ctx)
		case "4":
			s.deleteProduct(ctx)
		case "5":
			s.searchProducts(ctx)
		case "6":
			s.lowStock(ctx)
		case "7":
			s.expiring(ctx)
		case "8":
			s.adjustStock(ctx)
		case "9":
			s.dailySalesReport(ctx)
		case "10":
			s.monthlySalesReport(ctx)
		case "11":
			s.dailyPurchaseReport(ctx)
		default:
			fmt.Fprintln(s.out, "Unknown choice")
		}
		return
	}

	switch choice {
	case "1":
		s.listProducts(ctx)
	case "2":
		s.searchProducts(ctx)
	case "3":
		s.createBill(ctx)
	case "4":
		s.adjustStock(ctx)
	case "5":
		s.lowStock(ctx)
	case "6":
		s.expiring(ctx)
	case "7":
		s.dailySalesReport(ctx)
	case "8":
		s.monthlySalesReport(ctx)
	case "9":
		s.dailyPurchaseReport(ctx)
	default:
		fmt.Fprintln(s.out, "Unknown choice")
	}
}

func (s *Shell) listProducts(ctx context.Context) {
	products, err := s.svc.ListProducts(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error listing products: %v\n", err)
		return
	}
	s.printProducts(products)
}

func (s *Shell) printProducts(products []domain.Product) {
	if len(products) == 0 {
		fmt.Fprintln(s.out, "No products")
		return
	}
	for _, p := range products {
		expiry := "-"
		if p.ExpiryDate != nil {
			expiry = p.ExpiryDate.Format("2006-01-02")
		}
		fmt.Fprintf(s.out, "ID: %d, Name: %s, Category: %s, Price: %s, Stock: %d, Expiry: %s\n",
			p.ID, p.Name, p.Category, formatCents(p.PriceCents), p.Stock, expiry)
	}
}

func (s *Shell) addProduct(ctx context.Context) {
	id, err := s.readInt64("Product ID: ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	name, err := s.readLine("Name: ")
	if err != nil {
		return
	}
	category, err := s.readLine("Category: ")
	if err != nil {
		return
	}
	price, err := s.readMoney("Price (e.g. 2.00): ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	stock, err := s.readInt("Initial stock: ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	expiry, err := s.readLine("Expiry date YYYY-MM-DD (blank for none): ")
	if err != nil {
		return
	}

	product, err := s.svc.CreateProduct(ctx, domain.ProductCreateRequest{
		ID:         id,
		Name:       name,
		Category:   category,
		PriceCents: price,
		Stock:      stock,
		ExpiryDate: expiry,
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error adding product: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Added product %d: %s\n", product.ID, product.Name)
}

func (s *Shell) updateProduct(ctx context.Context) {
	id, err := s.readInt64("Product ID to update: ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}

	var req domain.ProductUpdateRequest
	if name, err := s.readLine("New name (blank to keep): "); err == nil && name != "" {
		req.Name = &name
	}
	if category, err := s.readLine("New category (blank to keep): "); err == nil && category != "" {
		req.Category = &category
	}
	if raw, err := s.readLine("New price (blank to keep): "); err == nil && raw != "" {
		price, err := parseMoney(raw)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid price: %v\n", err)
			return
		}
		req.PriceCents = &price
	}
	if raw, err := s.readLine("New stock (blank to keep): "); err == nil && raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid stock: %v\n", err)
			return
		}
		req.Stock = &stock
	}

	product, err := s.svc.UpdateProduct(ctx, id, req)
	if err != nil {
		fmt.Fprintf(s.out, "Error updating product: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Updated product %d: %s\n", product.ID, product.Name)
}

func (s *Shell) deleteProduct(ctx context.Context) {
	id, err := s.readInt64("Product ID to delete: ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	if err := s.svc.DeleteProduct(ctx, id); err != nil {
		fmt.Fprintf(s.out, "Error deleting product: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, "Product deleted")
}

func (s *Shell) searchProducts(ctx context.Context) {
	query, err := s.readLine("Search (name or category): ")
	if err != nil {
		return
	}
	products, err := s.svc.SearchProducts(ctx, query)
	if err != nil {
		fmt.Fprintf(s.out, "Error searching: %v\n", err)
		return
	}
	s.printProducts(products)
}

func (s *Shell) lowStock(ctx context.Context) {
	products, err := s.svc.LowStockProducts(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.printProducts(products)
}

func (s *Shell) expiring(ctx context.Context) {
	products, err := s.svc.ExpiringProducts(ctx)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.printProducts(products)
}

func (s *Shell) adjustStock(ctx context.Context) {
	id, err := s.readInt64("Product ID: ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	delta, err := s.readInt("Quantity delta (positive restock, negative removal): ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	var cost int64
	if delta > 0 {
		cost, err = s.readMoney("Unit cost (e.g. 1.20): ")
		if err != nil {
			fmt.Fprintf(s.out, "Invalid input: %v\n", err)
			return
		}
	}

	result, err := s.svc.AdjustStock(ctx, id, delta, cost)
	if err != nil {
		fmt.Fprintf(s.out, "Error adjusting stock: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Stock for %s is now %d\n", result.Product.Name, result.Product.Stock)
	if result.LowStock {
		fmt.Fprintf(s.out, "WARNING: %s is low on stock\n", result.Product.Name)
	}
}

func (s *Shell) createBill(ctx context.Context) {
	var lines []domain.BillLine
	for {
		id, err := s.readInt64("Product ID (0 to finish): ")
		if err != nil {
			fmt.Fprintf(s.out, "Invalid input: %v\n", err)
			return
		}
		if id == 0 {
			break
		}
		qty, err := s.readInt("Quantity: ")
		if err != nil {
			fmt.Fprintf(s.out, "Invalid input: %v\n", err)
			return
		}
		lines = append(lines, domain.BillLine{ProductID: id, Qty: qty})
	}
	if len(lines) == 0 {
		fmt.Fprintln(s.out, "No items entered")
		return
	}

	payment, err := s.readMoney("Payment received (e.g. 10.00): ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}

	resp, err := s.svc.CreateBill(ctx, domain.BillRequest{Lines: lines, PaymentCents: payment})
	if err != nil {
		fmt.Fprintf(s.out, "Error creating bill: %v\n", err)
		return
	}
	fmt.Fprintln(s.out, resp.Receipt)
	fmt.Fprintf(s.out, "Change due: %s\n", formatCents(resp.Sale.ChangeCents))
}

func (s *Shell) dailySalesReport(ctx context.Context) {
	date, err := s.readLine("Date YYYY-MM-DD (blank for today): ")
	if err != nil {
		return
	}
	report, err := s.svc.DailySalesReport(ctx, date)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Sales for %s\n", report.Date)
	fmt.Fprintf(s.out, "Transactions: %d, Items sold: %d, Total: %s\n",
		report.TransactionCount, report.ItemsSold, formatCents(report.TotalSalesCents))
	for _, sale := range report.Transactions {
		fmt.Fprintf(s.out, "  %s %s by %s: %s\n",
			sale.CreatedAt.Format("15:04:05"), sale.ID, sale.Cashier, formatCents(sale.TotalCents))
	}
}

func (s *Shell) monthlySalesReport(ctx context.Context) {
	year, err := s.readInt("Year: ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	month, err := s.readInt("Month (1-12): ")
	if err != nil {
		fmt.Fprintf(s.out, "Invalid input: %v\n", err)
		return
	}
	report, err := s.svc.MonthlySalesReport(ctx, year, month)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Sales for %d-%02d\n", report.Year, report.Month)
	fmt.Fprintf(s.out, "Transactions: %d, Total: %s\n", report.TransactionCount, formatCents(report.TotalSalesCents))
	for _, day := range report.DailyTotals {
		fmt.Fprintf(s.out, "  %s: %s\n", day.Date, formatCents(day.TotalCents))
	}
}

func (s *Shell) dailyPurchaseReport(ctx context.Context) {
	date, err := s.readLine("Date YYYY-MM-DD (blank for today): ")
	if err != nil {
		return
	}
	report, err := s.svc.DailyPurchaseReport(ctx, date)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Purchases for %s\n", report.Date)
	if len(report.Lines) == 0 {
		fmt.Fprintln(s.out, "No purchases")
		return
	}
	total := int64(0)
	for _, line := range report.Lines {
		total += line.TotalCostCents
		fmt.Fprintf(s.out, "  %s x%d @ %s = %s\n",
			line.ProductName, line.QtyRestocked, formatCents(line.UnitCostCents), formatCents(line.TotalCostCents))
	}
	fmt.Fprintf(s.out, "Total spent: %s\n", formatCents(total))
}

func (s *Shell) readLine(caption string) (string, error) {
	fmt.Fprint(s.out, caption)
	text, err := s.in.ReadString('\n')
	if err != nil && text == "" {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Shell) readInt(caption string) (int, error) {
	raw, err := s.readLine(caption)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

func (s *Shell) readInt64(caption string) (int64, error) {
	raw, err := s.readLine(caption)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *Shell) readMoney(caption string) (int64, error) {
	raw, err := s.readLine(caption)
	if err != nil {
		return 0, err
	}
	return parseMoney(raw)
}

// parseMoney converts a decimal amount like "2", "2.5" or "2.50" to cents
// without going through floating point.
func parseMoney(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(raw, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	cents := int64(0)
	if frac != "" {
		if len(frac) > 2 {
			return 0, fmt.Errorf("invalid amount %q", raw)
		}
		// Digits only: ParseInt would accept a sign here, turning
		// "1.+5" into 105.
		for _, r := range frac {
			if r < '0' || r > '9' {
				return 0, fmt.Errorf("invalid amount %q", raw)
			}
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q", raw)
		}
	}
	return units*100 + cents, nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
