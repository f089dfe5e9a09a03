package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/lifecycle"
	"github.com/jask/subwatch/internal/sample"
	"github.com/jask/subwatch/internal/service"
)

// newFlags returns a flag set carrying the shared -user flag.
func newFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	user := fs.String("user", os.Getenv("SUBWATCH_USER"), "user id")
	return fs, user
}

func requireUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return errors.New("-user is required")
	}
	return nil
}

// splitSub pops a verb off args, defaulting to def.
func splitSub(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

func oneArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", fmt.Errorf("expected %s", what)
	}
	return fs.Arg(0), nil
}

func (a *app) now() time.Time { return time.Now().In(a.loc) }

func (a *app) cmdIngest(ctx context.Context, args []string) error {
	fs, user := newFlags("ingest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}
	path, err := oneArg(fs, "a file path")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	res, err := a.ingest.IngestFile(ctx, *user, filepath.Base(path), data)
	if err != nil {
		return err
	}

	fmt.Println(heading("Import " + filepath.Base(path)))
	if res.Replayed {
		fmt.Println(mutedStyle.Render("already imported; showing the recorded result"))
	}
	fmt.Println(kv("processed", res.Processed))
	fmt.Println(kv("skipped", res.Skipped))
	for _, e := range res.Errors {
		fmt.Println("  " + errStyle.Render(e.Error()))
	}
	for raw, names := range res.Suggestions {
		fmt.Printf("  %s %s\n", warnStyle.Render(raw), mutedStyle.Render("did you mean "+strings.Join(names, ", ")+"?"))
	}
	return nil
}

func (a *app) cmdAnalyze(ctx context.Context, args []string) error {
	fs, user := newFlags("analyze")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}
	r, err := a.subscriptions.Analyze(ctx, *user)
	if err != nil {
		return err
	}
	if r.Empty() {
		fmt.Println(okStyle.Render("nothing to report"))
		return nil
	}
	cur := a.cfg.UI.Currency
	for _, d := range r.Duplicates {
		fmt.Printf("%s %s has %d active subscriptions\n",
			priorityStyle(string(d.Severity())).Render("[duplicate]"), d.MerchantName, len(d.Subscriptions))
	}
	for _, g := range r.Ghosts {
		fmt.Printf("%s %s idle for %d days\n",
			priorityStyle(string(g.Severity())).Render("[ghost]"), g.Subscription.MerchantName, g.IdleDays)
	}
	for _, t := range r.ExpiringTrials {
		fmt.Printf("%s %s trial ends in %d days\n",
			priorityStyle(string(t.Severity())).Render("[trial]"), t.Subscription.MerchantName, t.DaysLeft)
	}
	for _, p := range r.PriceIncreases {
		fmt.Printf("%s %s %s -> %s (%+.1f%%)\n",
			priorityStyle(string(p.Severity())).Render("[price]"), p.Subscription.MerchantName,
			money(p.OldPrice, cur), money(p.NewPrice, cur), p.IncreasePct)
	}
	if len(r.Recommendations) > 0 {
		fmt.Println(heading("Recommendations"))
		for _, rec := range r.Recommendations {
			fmt.Printf("  %s %s\n", okStyle.Render(money(rec.PotentialSavings, cur)), rec.Description)
		}
	}
	return nil
}

func (a *app) cmdAlerts(ctx context.Context, args []string) error {
	verb, args := splitSub(args, "list")
	fs, user := newFlags("alerts " + verb)
	status := fs.String("status", "", "filter by status (unread, read, dismissed)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}

	switch verb {
	case "emit":
		res, err := a.alerts.Emit(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(kv("created", res.Created), " ", kv("suppressed", res.Suppressed))
		return nil
	case "list":
		alerts, err := a.alerts.List(ctx, *user, *status)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(alerts))
		for _, al := range alerts {
			rows = append(rows, []string{
				al.ID, priorityStyle(al.Priority).Render(al.Priority), al.Status, al.Title, al.Message,
			})
		}
		fmt.Println(table([]string{"ID", "PRIORITY", "STATUS", "TITLE", "MESSAGE"}, rows))
		return nil
	case "read", "dismiss", "delete":
		id, err := oneArg(fs, "an alert id")
		if err != nil {
			return err
		}
		switch verb {
		case "read":
			_, err = a.alerts.MarkRead(ctx, id, *user)
		case "dismiss":
			_, err = a.alerts.Dismiss(ctx, id, *user)
		default:
			err = a.alerts.Delete(ctx, id, *user)
		}
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(verb + " " + id))
		return nil
	case "stats":
		st, err := a.alerts.Stats(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(heading("Alerts"))
		fmt.Println(kv("total", st.Total))
		fmt.Println(kv("unread", st.Unread))
		fmt.Println(kv("urgent", st.Urgent))
		fmt.Println(kv("by type", distribution(st.TypeDistribution)))
		return nil
	}
	return fmt.Errorf("unknown alerts command %q", verb)
}

func (a *app) cmdSavings(ctx context.Context, args []string) error {
	verb, args := splitSub(args, "list")
	fs, user := newFlags("savings " + verb)
	active := fs.Bool("active", false, "only savings still in effect")
	typ := fs.String("type", "manual", "saving type")
	title := fs.String("title", "", "saving title")
	amount := fs.Float64("amount", 0, "amount saved")
	freq := fs.String("frequency", repository.FrequencyMonthly, "one_time, monthly or yearly")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}
	cur := a.cfg.UI.Currency

	switch verb {
	case "auto":
		n, err := a.savings.RecordAutomatic(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(kv("recorded", n))
		return nil
	case "add":
		s, err := a.savings.Create(ctx, service.NewSaving{
			UserID:    *user,
			Type:      *typ,
			Title:     *title,
			Amount:    *amount,
			Frequency: *freq,
		})
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render("saved " + s.ID))
		return nil
	case "delete":
		id, err := oneArg(fs, "a saving id")
		if err != nil {
			return err
		}
		return a.savings.Delete(ctx, id, *user)
	case "list":
		list, err := a.savings.List(ctx, *user, *active)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, s := range list {
			rows = append(rows, []string{
				s.ID, s.Type, s.Title, money(s.Amount, s.Currency), s.Frequency, s.StartDate.In(a.loc).Format(time.DateOnly),
			})
		}
		fmt.Println(table([]string{"ID", "TYPE", "TITLE", "AMOUNT", "FREQUENCY", "SINCE"}, rows))
		return nil
	case "stats":
		st, err := a.savings.Stats(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(heading("Savings"))
		fmt.Println(kv("records", fmt.Sprintf("%d (%d active)", st.Total, st.Active)))
		fmt.Println(kv("monthly", money(st.TotalMonthly, cur)))
		fmt.Println(kv("yearly", money(st.TotalYearly, cur)))
		fmt.Println(kv("average per month", money(st.AverageMonthly, cur)))
		fmt.Println(kv("by type", distribution(st.TypeDistribution)))
		for _, p := range st.MonthlyTrend {
			fmt.Println("  " + kv(p.Month, money(p.Amount, cur)))
		}
		return nil
	case "achievement":
		ach, err := a.savings.Achievement(ctx, *user)
		if err != nil {
			return err
		}
		track := warnStyle.Render("behind")
		if ach.OnTrack {
			track = okStyle.Render("on track")
		}
		fmt.Println(heading("Goals") + " " + track)
		fmt.Println(kv("monthly", fmt.Sprintf("%.1f%% of %s", ach.MonthlyPct, money(ach.Monthly, cur))))
		fmt.Println(kv("yearly", fmt.Sprintf("%.1f%% of %s", ach.YearlyPct, money(ach.Yearly, cur))))
		return nil
	}
	return fmt.Errorf("unknown savings command %q", verb)
}

func (a *app) cmdForecast(ctx context.Context, args []string) error {
	fs, user := newFlags("forecast")
	months := fs.Int("months", 0, "months to project (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}
	entries, err := a.subscriptions.Forecast(ctx, *user, *months)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Month, money(e.EstimatedCost, a.cfg.UI.Currency), fmt.Sprint(e.SubscriptionCount)})
	}
	fmt.Println(table([]string{"MONTH", "ESTIMATE", "SUBSCRIPTIONS"}, rows))
	return nil
}

func (a *app) cmdRules(ctx context.Context, args []string) error {
	verb, args := splitSub(args, "list")
	fs := flag.NewFlagSet("rules "+verb, flag.ContinueOnError)
	name := fs.String("name", "", "canonical name")
	synonyms := fs.String("synonyms", "", "comma separated synonyms")
	category := fs.String("category", "", "category")
	cancelURL := fs.String("cancel-url", "", "cancellation page")
	website := fs.String("website", "", "merchant website")
	priority := fs.Int("priority", 5, "match priority 1-10")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch verb {
	case "list":
		rules, err := a.merchants.ListRules(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(rules))
		for _, r := range rules {
			state := okStyle.Render("on")
			if !r.IsActive {
				state = mutedStyle.Render("off")
			}
			rows = append(rows, []string{
				r.ID, r.CanonicalName, fmt.Sprint(r.Priority), state, r.Category, strings.Join(r.Synonyms, ", "),
			})
		}
		fmt.Println(table([]string{"ID", "NAME", "PRIO", "ACTIVE", "CATEGORY", "SYNONYMS"}, rows))
		return nil
	case "add":
		r, err := a.merchants.CreateRule(ctx, service.RuleInput{
			CanonicalName: *name,
			Synonyms:      splitList(*synonyms),
			Category:      *category,
			CancelURL:     *cancelURL,
			Website:       *website,
			Priority:      *priority,
		})
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render("created " + r.ID))
		return nil
	case "enable", "disable", "delete":
		id, err := oneArg(fs, "a rule id")
		if err != nil {
			return err
		}
		if verb == "delete" {
			return a.merchants.DeleteRule(ctx, id)
		}
		_, err = a.merchants.SetRuleActive(ctx, id, verb == "enable")
		return err
	case "synonym", "unsynonym":
		if fs.NArg() != 2 {
			return errors.New("expected a rule id and a synonym")
		}
		var err error
		if verb == "synonym" {
			_, err = a.merchants.AddSynonym(ctx, fs.Arg(0), fs.Arg(1))
		} else {
			_, err = a.merchants.RemoveSynonym(ctx, fs.Arg(0), fs.Arg(1))
		}
		return err
	case "suggest":
		raw, err := oneArg(fs, "a raw merchant name")
		if err != nil {
			return err
		}
		ident, err := a.merchants.Resolver().Identify(ctx, raw)
		if err != nil {
			return err
		}
		if ident.Matched {
			fmt.Println(kv(raw, okStyle.Render(ident.Name)))
			return nil
		}
		sugg, err := a.merchants.Suggest(ctx, raw, 3)
		if err != nil {
			return err
		}
		if len(sugg) == 0 {
			fmt.Println(mutedStyle.Render("no rule matches " + raw))
		}
		for _, s := range sugg {
			fmt.Println(kv(s.CanonicalName, fmt.Sprintf("%.2f", s.Similarity)))
		}
		return nil
	}
	return fmt.Errorf("unknown rules command %q", verb)
}

func (a *app) cmdMerchants(ctx context.Context, args []string) error {
	verb, args := splitSub(args, "list")
	fs := flag.NewFlagSet("merchants "+verb, flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch verb {
	case "list":
		list, err := a.merchants.ListMerchants(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(list))
		for _, m := range list {
			rows = append(rows, []string{m.ID, m.NameNorm, m.Category, m.NameOriginal})
		}
		fmt.Println(table([]string{"ID", "NAME", "CATEGORY", "FIRST SEEN AS"}, rows))
		return nil
	case "rename":
		if fs.NArg() != 2 {
			return errors.New("expected a merchant id and a new name")
		}
		m, err := a.merchants.RenameMerchant(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render("renamed to " + m.NameNorm))
		return nil
	case "categories":
		counts, err := a.merchants.CategoryStats(ctx)
		if err != nil {
			return err
		}
		fmt.Println(kv("categories", distribution(counts)))
		return nil
	}
	return fmt.Errorf("unknown merchants command %q", verb)
}

func (a *app) cmdSubscriptions(ctx context.Context, args []string) error {
	verb, args := splitSub(args, "list")
	fs, user := newFlags("subs " + verb)
	merchantName := fs.String("merchant", "", "merchant name as it appears on statements")
	plan := fs.String("plan", "", "plan name")
	cycle := fs.String("cycle", repository.CycleMonthly, "monthly, yearly or trial")
	price := fs.Float64("price", 0, "price per cycle")
	next := fs.String("next", "", "next bill date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}
	cur := a.cfg.UI.Currency

	switch verb {
	case "add":
		m, err := a.merchants.Resolve(ctx, *merchantName)
		if err != nil {
			return err
		}
		in := service.NewSubscription{
			UserID:     *user,
			MerchantID: m.ID,
			Plan:       *plan,
			Cycle:      *cycle,
			Price:      *price,
			Currency:   cur,
		}
		if *next != "" {
			t, err := time.ParseInLocation(time.DateOnly, *next, a.loc)
			if err != nil {
				return fmt.Errorf("next bill date: %w", err)
			}
			in.NextBillAt = &t
		}
		s, err := a.subscriptions.Create(ctx, in)
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("subscribed to %s (%s)", s.MerchantName, s.ID)))
		return nil
	case "list":
		subs, err := a.subscriptions.List(ctx, *user)
		if err != nil {
			return err
		}
		now := a.now()
		rows := make([][]string, 0, len(subs))
		for _, s := range subs {
			due := "-"
			if days, ok := lifecycle.DaysUntilNextBill(s, now); ok {
				due = fmt.Sprintf("%s (%dd)", s.NextBillAt.In(a.loc).Format(time.DateOnly), days)
			}
			rows = append(rows, []string{s.ID, s.MerchantName, s.Plan, s.Cycle, money(s.Price, s.Currency), s.Status, due})
		}
		fmt.Println(table([]string{"ID", "MERCHANT", "PLAN", "CYCLE", "PRICE", "STATUS", "NEXT BILL"}, rows))
		return nil
	case "pause", "resume", "cancel":
		id, err := oneArg(fs, "a subscription id")
		if err != nil {
			return err
		}
		current, err := a.subscriptions.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.UserID != *user {
			return fmt.Errorf("subscription %s: %w", id, service.ErrNotFound)
		}
		var s repository.Subscription
		switch verb {
		case "pause":
			s, err = a.subscriptions.Pause(ctx, id)
		case "resume":
			s, err = a.subscriptions.Resume(ctx, id)
		default:
			s, err = a.subscriptions.Cancel(ctx, id)
		}
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(s.MerchantName + " is now " + s.Status))
		return nil
	case "delete":
		id, err := oneArg(fs, "a subscription id")
		if err != nil {
			return err
		}
		return a.subscriptions.Delete(ctx, id, *user)
	case "stats":
		st, err := a.subscriptions.Stats(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(heading("Subscriptions"))
		fmt.Println(kv("total", fmt.Sprintf("%d (%d active)", st.Total, st.Active)))
		fmt.Println(kv("cycles", fmt.Sprintf("%d monthly, %d yearly, %d trial", st.Monthly, st.Yearly, st.Trial)))
		fmt.Println(kv("monthly spend", money(st.TotalMonthlySpending, cur)))
		fmt.Println(kv("yearly spend", money(st.TotalYearlySpending, cur)))
		fmt.Println(kv("monthly equivalent", money(st.TotalMonthlyEquivalent, cur)))
		fmt.Println(kv("average", money(st.AverageMonthlySpending, cur)))
		return nil
	}
	return fmt.Errorf("unknown subs command %q", verb)
}

func (a *app) cmdTransactions(ctx context.Context, args []string) error {
	verb, args := splitSub(args, "list")
	fs, user := newFlags("tx " + verb)
	limit := fs.Int("limit", 20, "rows to show; 0 shows all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cur := a.cfg.UI.Currency

	switch verb {
	case "list":
		if err := requireUser(*user); err != nil {
			return err
		}
		txs, err := a.transactions.List(ctx, *user, *limit)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(txs))
		for _, t := range txs {
			rows = append(rows, []string{
				t.ID, t.TransactionDate.In(a.loc).Format(time.DateOnly), t.Description, money(t.Amount, t.Currency), t.Status,
			})
		}
		fmt.Println(table([]string{"ID", "DATE", "DESCRIPTION", "AMOUNT", "STATUS"}, rows))
		return nil
	case "stats":
		if err := requireUser(*user); err != nil {
			return err
		}
		st, err := a.transactions.Stats(ctx, *user)
		if err != nil {
			return err
		}
		fmt.Println(heading("Transactions"))
		fmt.Println(kv("completed", st.Count))
		fmt.Println(kv("total", money(st.TotalAmount, cur)))
		fmt.Println(kv("merchants", st.MerchantCount))
		fmt.Println(kv("average", money(st.AverageAmount, cur)))
		for _, p := range st.MonthlySpending {
			fmt.Println("  " + kv(p.Month, money(p.Amount, cur)))
		}
		return nil
	case "status":
		if fs.NArg() != 2 {
			return errors.New("expected a transaction id and a status")
		}
		t, err := a.transactions.SetStatus(ctx, fs.Arg(0), fs.Arg(1))
		if err != nil {
			return err
		}
		fmt.Println(okStyle.Render(t.ID + " is now " + t.Status))
		return nil
	}
	return fmt.Errorf("unknown tx command %q", verb)
}

func (a *app) cmdReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	user := fs.String("user", "", "only wipe this user's data")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user != "" {
		if err := a.maintenance.ResetUser(ctx, *user); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("cleared data for " + *user))
		return nil
	}
	if err := a.maintenance.Reset(ctx); err != nil {
		return err
	}
	fmt.Println(okStyle.Render("database reset"))
	return nil
}

func (a *app) cmdDemo(ctx context.Context, args []string) error {
	fs, user := newFlags("demo")
	seed := fs.Int64("seed", time.Now().UnixNano(), "random seed for the filler charges")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireUser(*user); err != nil {
		return err
	}
	sum, err := sample.Seed(ctx, sample.Services{
		Merchants:     a.merchants,
		Subscriptions: a.subscriptions,
		Ingest:        a.ingest,
	}, *user, a.now(), *seed)
	if err != nil {
		return err
	}
	fmt.Println(heading("Sample data for " + *user))
	fmt.Println(kv("subscriptions", sum.Subscriptions))
	fmt.Println(kv("transactions", fmt.Sprintf("%d (%d skipped)", sum.Processed, sum.Skipped)))
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
