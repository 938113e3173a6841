package auth

// Scope is a string permission identifier gating one operation.
type Scope string

const (
	// User scopes
	ScopeUserQuery        Scope = "user.query"
	ScopeUserReadResponse Scope = "user.read_response"

	// Orchestrator scopes
	ScopeOrchestratorRoute   Scope = "orchestrator.route"
	ScopeOrchestratorCombine Scope = "orchestrator.combine"

	// Trainer scopes
	ScopeTrainerRead            Scope = "trainer.read"
	ScopeTrainerSuggest         Scope = "trainer.suggest"
	ScopeTrainerInvokeNutrition Scope = "trainer.invoke_nutrition"

	// Nutrition scopes
	ScopeNutritionInvokeTrainer Scope = "nutrition.invoke_trainer"
	ScopeNutritionDietPlan      Scope = "nutrition.dietplan"
	ScopeNutritionBreakdown     Scope = "nutrition.breakdown"

	// Recovery scopes
	ScopeRecoveryCollect         Scope = "recovery.collect"
	ScopeRecoveryInvokeTrainer   Scope = "recovery.invoke_trainer"
	ScopeRecoveryInvokeNutrition Scope = "recovery.invoke_nutrition"
	ScopeRecoveryRead            Scope = "recovery.read"
)
